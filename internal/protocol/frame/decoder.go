package frame

import (
	"time"
)

// MultiFrameTimeout bounds how long a partial frame waits for its remaining bytes.
const MultiFrameTimeout = 500 * time.Millisecond

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithClock replaces the wall clock used for staleness checks.
func WithClock(now func() time.Time) DecoderOption {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}

// WithTimeout overrides MultiFrameTimeout.
func WithTimeout(timeout time.Duration) DecoderOption {
	return func(d *Decoder) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithDiscardHook is called whenever a stale partial frame is dropped.
func WithDiscardHook(fn func(buffered int)) DecoderOption {
	return func(d *Decoder) {
		d.onDiscard = fn
	}
}

// Decoder reassembles one frame at a time from arbitrarily split chunks.
//
// Decoder is not safe for concurrent use; the transport serializes access.
type Decoder struct {
	now       func() time.Time
	timeout   time.Duration
	onDiscard func(buffered int)

	buf        []byte
	header     Header
	haveHeader bool
	last       time.Time
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		now:     time.Now,
		timeout: MultiFrameTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.last = d.now()
	return d
}

// Pending reports whether a partial frame is buffered.
func (d *Decoder) Pending() bool {
	return len(d.buf) > 0
}

// Reset drops any partial frame.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.header = Header{}
	d.haveHeader = false
}

// Decode feeds chunk into the reassembly buffer. It returns ok=true with the
// completed frame once header, payload and CRC have all arrived. A CRC
// mismatch returns ErrChecksum; in every terminal case the buffer is reset.
// Bytes past the end of a completed frame in the same chunk are discarded.
func (d *Decoder) Decode(chunk []byte) (Frame, bool, error) {
	if len(chunk) == 0 {
		return Frame{}, false, nil
	}

	now := d.now()
	if d.Pending() && now.Sub(d.last) > d.timeout {
		if d.onDiscard != nil {
			d.onDiscard(len(d.buf))
		}
		d.Reset()
	}
	d.last = now

	d.buf = append(d.buf, chunk...)
	if !d.haveHeader {
		if len(d.buf) < HeaderLen {
			return Frame{}, false, nil
		}
		h, err := DecodeHeader(d.buf[:HeaderLen])
		if err != nil {
			d.Reset()
			return Frame{}, false, err
		}
		d.header = h
		d.haveHeader = true
	}

	total := HeaderLen + int(d.header.Size) + CRCLen
	if len(d.buf) < total {
		return Frame{}, false, nil
	}

	if CRC16(d.buf[:total]) != 0 {
		d.Reset()
		return Frame{}, false, ErrChecksum
	}

	payload := make([]byte, d.header.Size)
	copy(payload, d.buf[HeaderLen:HeaderLen+int(d.header.Size)])
	out := Frame{Header: d.header, Payload: payload}
	d.Reset()
	return out, true, nil
}
