package zones

import (
	"container/list"
	"math"
	"sync"

	"github.com/danmuck/parkbeam/internal/protocol"
)

const (
	MotionHistoryLen = 60
	MotionThreshold  = 30.0
	DefaultMaxTracks = 1024
)

// MotionHistory remembers the recent centers of tracked objects. Each
// track keeps at most historyLen positions and at most maxTracks tracks
// are kept; the least recently observed track is evicted first.
type MotionHistory struct {
	mu         sync.Mutex
	historyLen int
	maxTracks  int
	threshold  float64
	tracks     map[int]*list.Element
	lru        *list.List
}

type track struct {
	id    int
	ring  []protocol.Point
	start int
	n     int
}

func (t *track) push(p protocol.Point) {
	if t.n < len(t.ring) {
		t.ring[(t.start+t.n)%len(t.ring)] = p
		t.n++
		return
	}
	t.ring[t.start] = p
	t.start = (t.start + 1) % len(t.ring)
}

func (t *track) at(i int) protocol.Point {
	return t.ring[(t.start+i)%len(t.ring)]
}

func NewMotionHistory(historyLen, maxTracks int, threshold float64) *MotionHistory {
	if historyLen <= 0 {
		historyLen = MotionHistoryLen
	}
	if maxTracks <= 0 {
		maxTracks = DefaultMaxTracks
	}
	if threshold <= 0 {
		threshold = MotionThreshold
	}
	return &MotionHistory{
		historyLen: historyLen,
		maxTracks:  maxTracks,
		threshold:  threshold,
		tracks:     make(map[int]*list.Element),
		lru:        list.New(),
	}
}

// Observe appends p to the history of id and reports whether the object is
// moving: some retained position lies farther than the threshold from the
// oldest one.
func (m *MotionHistory) Observe(id int, p protocol.Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.tracks[id]
	if ok {
		m.lru.MoveToFront(el)
	} else {
		if m.lru.Len() >= m.maxTracks {
			oldest := m.lru.Back()
			m.lru.Remove(oldest)
			delete(m.tracks, oldest.Value.(*track).id)
		}
		el = m.lru.PushFront(&track{id: id, ring: make([]protocol.Point, m.historyLen)})
		m.tracks[id] = el
	}
	t := el.Value.(*track)
	t.push(p)
	if t.n < 2 {
		return false
	}

	origin := t.at(0)
	var maxDist float64
	for i := 1; i < t.n; i++ {
		q := t.at(i)
		maxDist = math.Max(maxDist, math.Hypot(float64(q.X-origin.X), float64(q.Y-origin.Y)))
	}
	return maxDist > m.threshold
}

func (m *MotionHistory) Forget(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.tracks[id]; ok {
		m.lru.Remove(el)
		delete(m.tracks, id)
	}
}

func (m *MotionHistory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
