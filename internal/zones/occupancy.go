package zones

import "github.com/danmuck/parkbeam/internal/protocol"

// MinCoverage is the share of a zone a detection must cover to count as
// occupying it.
const MinCoverage = 0.25

// Occupancy debounces raw per-frame observations. A zone flips only after
// the contrary observation has outweighed agreeing ones by
// inertiaSeconds*fps frames.
type Occupancy struct {
	status         protocol.ZoneState
	inertia        int
	inertiaSeconds int
}

func NewOccupancy(initial protocol.ZoneState, inertiaSeconds int) *Occupancy {
	return &Occupancy{status: initial, inertiaSeconds: inertiaSeconds}
}

func (o *Occupancy) Status() protocol.ZoneState { return o.status }

// Update feeds one observation and reports whether the status flipped.
func (o *Occupancy) Update(occupied bool, fps float64) bool {
	observed := protocol.ZoneEmpty
	if occupied {
		observed = protocol.ZoneOccupied
	}
	if o.status == observed {
		if o.inertia > 0 {
			o.inertia--
		}
		return false
	}
	o.inertia++
	if float64(o.inertia) >= float64(o.inertiaSeconds)*fps {
		o.status = observed
		o.inertia = 0
		return true
	}
	return false
}

// SetInertia changes the debounce window; pending inertia is kept.
func (o *Occupancy) SetInertia(seconds int) {
	o.inertiaSeconds = seconds
}
