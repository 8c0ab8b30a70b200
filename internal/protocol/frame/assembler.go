package frame

import (
	"fmt"
	"time"
)

// MaxMessage bounds the joined payload of one multi-frame message.
const MaxMessage = 64 * 1024

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerClock replaces the wall clock used for staleness checks.
func WithAssemblerClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAssemblerTimeout overrides MultiFrameTimeout as the longest gap allowed
// between frames of one sequence.
func WithAssemblerTimeout(timeout time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// WithMaxMessage overrides MaxMessage.
func WithMaxMessage(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.maxLen = n
		}
	}
}

// WithStaleHook is called whenever an open sequence is dropped for going stale.
func WithStaleHook(fn func(buffered int)) AssemblerOption {
	return func(a *Assembler) {
		a.onStale = fn
	}
}

// Assembler joins the payloads of a First/Continue.../Last frame sequence
// into one logical message. A lone Last frame is a complete message.
//
// An open sequence that sees no frame for longer than the timeout is
// dropped before the next frame is handled. The zero value uses the wall
// clock, MultiFrameTimeout and MaxMessage.
type Assembler struct {
	now     func() time.Time
	timeout time.Duration
	maxLen  int
	onStale func(buffered int)

	payload []byte
	active  bool
	index   uint8
	last    time.Time
}

func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Push adds f to the current sequence and returns the joined payload once
// the Last frame arrives. Continue or Last frames carrying a different
// index than the opening First frame are rejected, as is a sequence whose
// joined payload would exceed the message limit.
func (a *Assembler) Push(f Frame) ([]byte, bool, error) {
	now := a.clock()
	if a.active && now.Sub(a.last) > a.staleAfter() {
		if a.onStale != nil {
			a.onStale(len(a.payload))
		}
		a.Reset()
	}
	a.last = now

	switch f.Header.Sequence {
	case SequenceFirst:
		a.payload = append(a.payload[:0], f.Payload...)
		a.active = true
		a.index = f.Header.Index
		return nil, false, nil
	case SequenceContinue:
		if err := a.expect(f); err != nil {
			return nil, false, err
		}
		a.payload = append(a.payload, f.Payload...)
		return nil, false, nil
	case SequenceLast:
		if !a.active {
			out := make([]byte, len(f.Payload))
			copy(out, f.Payload)
			return out, true, nil
		}
		if err := a.expect(f); err != nil {
			return nil, false, err
		}
		out := make([]byte, 0, len(a.payload)+len(f.Payload))
		out = append(out, a.payload...)
		out = append(out, f.Payload...)
		a.Reset()
		return out, true, nil
	default:
		a.Reset()
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidSequence, uint8(f.Header.Sequence))
	}
}

// Split cuts payload into frames of at most maxChunk bytes, marked
// First/Continue/Last. A payload that fits in one frame is a single Last.
func Split(payload []byte, index uint8, maxChunk int) []Frame {
	if maxChunk <= 0 || maxChunk > MaxPayload {
		maxChunk = MaxPayload
	}
	if len(payload) <= maxChunk {
		return []Frame{{
			Header:  Header{Version: Version, Size: uint8(len(payload)), Index: index, Sequence: SequenceLast},
			Payload: payload,
		}}
	}
	frames := make([]Frame, 0, len(payload)/maxChunk+1)
	for off := 0; off < len(payload); off += maxChunk {
		end := min(off+maxChunk, len(payload))
		seq := SequenceContinue
		switch {
		case off == 0:
			seq = SequenceFirst
		case end == len(payload):
			seq = SequenceLast
		}
		frames = append(frames, Frame{
			Header:  Header{Version: Version, Size: uint8(end - off), Index: index, Sequence: seq},
			Payload: payload[off:end],
		})
	}
	return frames
}

// Active reports whether a sequence is open.
func (a *Assembler) Active() bool {
	return a.active
}

func (a *Assembler) Reset() {
	a.payload = a.payload[:0]
	a.active = false
	a.index = 0
}

func (a *Assembler) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func (a *Assembler) staleAfter() time.Duration {
	if a.timeout <= 0 {
		return MultiFrameTimeout
	}
	return a.timeout
}

func (a *Assembler) limit() int {
	if a.maxLen <= 0 {
		return MaxMessage
	}
	return a.maxLen
}

func (a *Assembler) expect(f Frame) error {
	h := f.Header
	if !a.active {
		return fmt.Errorf("%w: %s without first", ErrUnexpectedSequence, h.Sequence)
	}
	if h.Index != a.index {
		open := a.index
		a.Reset()
		return fmt.Errorf("%w: index %d in sequence %d", ErrUnexpectedSequence, h.Index, open)
	}
	if len(a.payload)+len(f.Payload) > a.limit() {
		n := len(a.payload) + len(f.Payload)
		a.Reset()
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrMessageTooLarge, n, a.limit())
	}
	return nil
}
