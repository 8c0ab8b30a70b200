// Package zones holds the host-owned zone list and detector config, the
// zone file formats, and the per-zone occupancy bookkeeping.
package zones

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/danmuck/parkbeam/internal/protocol"
)

var ErrUnknownZone = errors.New("zones: unknown zone")

// Store is the shared state read by the dispatcher and written by the host.
// Zones keep the order they were loaded in; that order is the 1..N
// addressing used on the wire.
type Store struct {
	mu    sync.RWMutex
	zones []protocol.ZoneStatus
	cfg   protocol.Config
}

func NewStore(cfg protocol.Config) *Store {
	return &Store{cfg: cfg}
}

// Zones returns a copy of every zone with its current status.
func (s *Store) Zones() []protocol.ZoneStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.ZoneStatus, len(s.zones))
	for i, z := range s.zones {
		out[i] = cloneStatus(z)
	}
	return out
}

// Zone looks a zone up by its id, not its position.
func (s *Store) Zone(id int) (protocol.ZoneStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return protocol.ZoneStatus{}, false
	}
	return cloneStatus(s.zones[i]), true
}

func (s *Store) Config() protocol.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Store) SetConfig(cfg protocol.Config) error {
	if err := protocol.ValidateConfig(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// SetZones replaces the zone list. Zones whose id survives the swap keep
// their status and count; new zones start Empty.
func (s *Store) SetZones(configs []protocol.ZoneConfig) error {
	if err := protocol.ValidateZones(configs); err != nil {
		return err
	}
	next := make([]protocol.ZoneStatus, len(configs))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range configs {
		next[i] = protocol.ZoneStatus{ZoneConfig: cloneConfig(c), Status: protocol.ZoneEmpty}
		if j := s.indexLocked(c.ZoneID); j >= 0 {
			next[i].Status = s.zones[j].Status
			next[i].Count = s.zones[j].Count
		}
	}
	s.zones = next
	return nil
}

// UpdateStatus sets the state and count of one zone and reports whether
// either changed.
func (s *Store) UpdateStatus(zoneID int, state protocol.ZoneState, count int) (protocol.ZoneStatus, bool, error) {
	if !state.Valid() {
		return protocol.ZoneStatus{}, false, fmt.Errorf("%w: %s", protocol.ErrInvalidZoneState, state)
	}
	if count < 0 || count > protocol.MaxZoneCount {
		return protocol.ZoneStatus{}, false, fmt.Errorf("%w: count %d", protocol.ErrValidation, count)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(zoneID)
	if i < 0 {
		return protocol.ZoneStatus{}, false, fmt.Errorf("%w: %d", ErrUnknownZone, zoneID)
	}
	z := &s.zones[i]
	changed := z.Status != state || z.Count != count
	z.Status = state
	z.Count = count
	return cloneStatus(*z), changed, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}

func (s *Store) indexLocked(id int) int {
	return slices.IndexFunc(s.zones, func(z protocol.ZoneStatus) bool { return z.ZoneID == id })
}

func cloneConfig(c protocol.ZoneConfig) protocol.ZoneConfig {
	c.Points = slices.Clone(c.Points)
	return c
}

func cloneStatus(z protocol.ZoneStatus) protocol.ZoneStatus {
	z.ZoneConfig = cloneConfig(z.ZoneConfig)
	return z
}
