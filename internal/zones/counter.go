package zones

import "sync"

// Counter tallies distinct vehicles seen, overall and per zone they
// parked in.
type Counter struct {
	mu       sync.Mutex
	vehicles map[int]map[int]struct{}
}

func NewCounter() *Counter {
	return &Counter{vehicles: make(map[int]map[int]struct{})}
}

// Add records vehicleID, and zoneID when it is non-zero.
func (c *Counter) Add(vehicleID, zoneID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen, ok := c.vehicles[vehicleID]
	if !ok {
		seen = make(map[int]struct{})
		c.vehicles[vehicleID] = seen
	}
	if zoneID != 0 {
		seen[zoneID] = struct{}{}
	}
}

// Count returns all distinct vehicles for zoneID 0, otherwise those that
// parked in zoneID.
func (c *Counter) Count(zoneID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if zoneID == 0 {
		return len(c.vehicles)
	}
	n := 0
	for _, zones := range c.vehicles {
		if _, ok := zones[zoneID]; ok {
			n++
		}
	}
	return n
}

func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.vehicles)
}
