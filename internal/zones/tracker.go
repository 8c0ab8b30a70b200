package zones

import (
	"sync"

	"github.com/danmuck/parkbeam/internal/protocol"
)

// Detection is one object reported by the detector for a single frame.
// Tracked detections carry an id that is stable across frames.
type Detection struct {
	ID      int  `json:"id"`
	Box     Box  `json:"box"`
	Tracked bool `json:"tracked"`
}

// Tracker turns per-frame detections into debounced zone states and
// writes changes into the store.
type Tracker struct {
	store   *Store
	motion  *MotionHistory
	counter *Counter

	mu        sync.Mutex
	occupancy map[int]*Occupancy
}

func NewTracker(store *Store) *Tracker {
	return &Tracker{
		store:     store,
		motion:    NewMotionHistory(MotionHistoryLen, DefaultMaxTracks, MotionThreshold),
		counter:   NewCounter(),
		occupancy: make(map[int]*Occupancy),
	}
}

func (t *Tracker) Counter() *Counter { return t.counter }

// Observe applies one frame and returns the zones whose state changed.
// Tracked detections that are moving never occupy a zone.
func (t *Tracker) Observe(dets []Detection, fps float64) ([]protocol.ZoneStatus, error) {
	cfg := t.store.Config()
	valid := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Tracked && t.motion.Observe(d.ID, d.Box.Center()) {
			continue
		}
		valid = append(valid, d)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.store.Zones()
	live := make(map[int]struct{}, len(current))
	var changed []protocol.ZoneStatus
	for _, z := range current {
		live[z.ZoneID] = struct{}{}
		occ, ok := t.occupancy[z.ZoneID]
		if !ok {
			occ = NewOccupancy(z.Status, cfg.Inertia)
			t.occupancy[z.ZoneID] = occ
		}
		occ.SetInertia(cfg.Inertia)

		best, bestID, bestTracked := 0.0, 0, false
		for _, d := range valid {
			if c := Coverage(z.ZoneConfig, d.Box); c > best {
				best, bestID, bestTracked = c, d.ID, d.Tracked
			}
		}
		occupied := best > MinCoverage
		if occupied && bestTracked && cfg.Tracking {
			t.counter.Add(bestID, z.ZoneID)
		}
		if !occ.Update(occupied, fps) {
			continue
		}
		count := z.Count
		if cfg.Tracking {
			count = t.counter.Count(z.ZoneID)
		}
		updated, _, err := t.store.UpdateStatus(z.ZoneID, occ.Status(), count)
		if err != nil {
			return changed, err
		}
		changed = append(changed, updated)
	}
	for id := range t.occupancy {
		if _, ok := live[id]; !ok {
			delete(t.occupancy, id)
		}
	}
	return changed, nil
}

// Reset drops debounce state and vehicle counts, e.g. after the zone list
// is reloaded.
func (t *Tracker) Reset() {
	t.mu.Lock()
	clear(t.occupancy)
	t.mu.Unlock()
	t.counter.Reset()
}
