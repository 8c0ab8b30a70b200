package frame

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDecoder() (*Decoder, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	return NewDecoder(WithClock(clock.Now)), clock
}

func mustEncode(t *testing.T, h Header, payload []byte) []byte {
	t.Helper()
	out, err := Encode(h, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func TestCRC16KnownVectors(t *testing.T) {
	if got := CRC16([]byte("123456789")); got != 0x4B37 {
		t.Fatalf("crc16(123456789)=%#04x want 0x4b37", got)
	}
	if got := CRC16(nil); got != 0xFFFF {
		t.Fatalf("crc16(nil)=%#04x want 0xffff", got)
	}
}

func TestEncodeLayout(t *testing.T) {
	out := mustEncode(t, Header{Version: 1, Index: 7, Sequence: SequenceLast}, []byte{0x01})
	if len(out) != HeaderLen+1+CRCLen {
		t.Fatalf("unexpected length: %d", len(out))
	}
	if !bytes.Equal(out[:5], []byte{1, 1, 7, 2, 0x01}) {
		t.Fatalf("unexpected header/payload bytes: % x", out[:5])
	}
	crc := CRC16(out[:5])
	if out[5] != byte(crc) || out[6] != byte(crc>>8) {
		t.Fatalf("crc not little-endian: % x crc=%#04x", out[5:], crc)
	}
	if CRC16(out) != 0 {
		t.Fatalf("crc over full frame must be zero")
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(Header{Version: 1, Sequence: SequenceLast}, make([]byte, MaxPayload+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeRoundTripSingleChunk(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x20, 0x01, 0x00, 0x01, 0x02, 0x00},
		bytes.Repeat([]byte{0xAB}, MaxPayload),
	}
	for _, payload := range cases {
		dec, _ := newTestDecoder()
		h := Header{Version: 1, Index: 3, Sequence: SequenceLast}
		got, ok, err := dec.Decode(mustEncode(t, h, payload))
		if err != nil || !ok {
			t.Fatalf("decode len=%d ok=%v err=%v", len(payload), ok, err)
		}
		if got.Header.Version != 1 || got.Header.Index != 3 || got.Header.Sequence != SequenceLast {
			t.Fatalf("header mismatch: %+v", got.Header)
		}
		if int(got.Header.Size) != len(payload) || !bytes.Equal(got.Payload, payload) {
			t.Fatalf("payload mismatch: got % x want % x", got.Payload, payload)
		}
		if dec.Pending() {
			t.Fatalf("decoder must be idle after a complete frame")
		}
	}
}

func TestDecodeChunkedMatchesWhole(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	payload := make([]byte, 40)
	rng.Read(payload)
	encoded := mustEncode(t, Header{Version: 1, Index: 9, Sequence: SequenceLast}, payload)

	for trial := 0; trial < 200; trial++ {
		dec, clock := newTestDecoder()
		var (
			got Frame
			ok  bool
		)
		for off := 0; off < len(encoded); {
			n := 1 + rng.Intn(len(encoded)-off)
			f, done, err := dec.Decode(encoded[off : off+n])
			if err != nil {
				t.Fatalf("trial %d: decode chunk: %v", trial, err)
			}
			off += n
			if done {
				if off != len(encoded) {
					t.Fatalf("trial %d: completed early at %d/%d", trial, off, len(encoded))
				}
				got, ok = f, true
			}
			clock.Advance(10 * time.Millisecond)
		}
		if !ok {
			t.Fatalf("trial %d: frame never completed", trial)
		}
		if got.Header.Index != 9 || !bytes.Equal(got.Payload, payload) {
			t.Fatalf("trial %d: mismatch", trial)
		}
	}
}

func TestDecodeSingleBitFlipFailsChecksum(t *testing.T) {
	encoded := mustEncode(t, Header{Version: 1, Index: 1, Sequence: SequenceLast}, []byte{0x21, 25, 3, 0, 1})
	for i := range encoded {
		// size and sequence bytes change framing itself rather than content.
		if i == 1 || i == 3 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), encoded...)
			corrupt[i] ^= 1 << bit
			dec, _ := newTestDecoder()
			_, ok, err := dec.Decode(corrupt)
			if ok || !errors.Is(err, ErrChecksum) {
				t.Fatalf("byte %d bit %d: expected ErrChecksum, got ok=%v err=%v", i, bit, ok, err)
			}
			if dec.Pending() {
				t.Fatalf("byte %d bit %d: state not reset after checksum failure", i, bit)
			}
		}
	}
}

func TestDecodeInvalidSequenceResets(t *testing.T) {
	dec, _ := newTestDecoder()
	_, ok, err := dec.Decode([]byte{1, 0, 0, 9, 0, 0})
	if ok || !errors.Is(err, ErrInvalidSequence) {
		t.Fatalf("expected ErrInvalidSequence, got ok=%v err=%v", ok, err)
	}
	if dec.Pending() {
		t.Fatalf("expected reset after invalid header")
	}
}

func TestDecodeStaleFragmentIsDropped(t *testing.T) {
	dec, clock := newTestDecoder()
	discarded := 0
	dec.onDiscard = func(int) { discarded++ }

	first := mustEncode(t, Header{Version: 1, Index: 1, Sequence: SequenceLast}, []byte{0x31, 0x00, 0x00})
	if _, ok, err := dec.Decode(first[:3]); ok || err != nil {
		t.Fatalf("partial chunk: ok=%v err=%v", ok, err)
	}

	clock.Advance(MultiFrameTimeout + time.Millisecond)

	second := mustEncode(t, Header{Version: 1, Index: 2, Sequence: SequenceLast}, []byte{0x01})
	got, ok, err := dec.Decode(second)
	if err != nil || !ok {
		t.Fatalf("fresh frame after timeout: ok=%v err=%v", ok, err)
	}
	if got.Header.Index != 2 || !bytes.Equal(got.Payload, []byte{0x01}) {
		t.Fatalf("unexpected frame after timeout: %+v", got)
	}
	if discarded != 1 {
		t.Fatalf("expected one discard, got %d", discarded)
	}
}

func TestDecodeWithinTimeoutContinues(t *testing.T) {
	dec, clock := newTestDecoder()
	encoded := mustEncode(t, Header{Version: 1, Sequence: SequenceLast}, []byte{0x01, 0x02})
	if _, ok, _ := dec.Decode(encoded[:2]); ok {
		t.Fatalf("unexpected completion")
	}
	clock.Advance(MultiFrameTimeout)
	got, ok, err := dec.Decode(encoded[2:])
	if err != nil || !ok || !bytes.Equal(got.Payload, []byte{0x01, 0x02}) {
		t.Fatalf("expected completion at exactly the timeout: ok=%v err=%v", ok, err)
	}
}

func TestAssemblerJoinsSequence(t *testing.T) {
	payload := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 120)
	frames := Split(payload, 4, 0)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[0].Header.Sequence != SequenceFirst || frames[1].Header.Sequence != SequenceContinue || frames[2].Header.Sequence != SequenceLast {
		t.Fatalf("unexpected sequence markers")
	}

	var asm Assembler
	var joined []byte
	for i, f := range frames {
		out, done, err := asm.Push(f)
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		if done {
			joined = out
		}
	}
	if !bytes.Equal(joined, payload) {
		t.Fatalf("joined payload mismatch")
	}
	if asm.Active() {
		t.Fatalf("assembler should be idle after last")
	}
}

func TestAssemblerLoneLastAndOutOfOrder(t *testing.T) {
	var asm Assembler
	out, done, err := asm.Push(Frame{Header: Header{Sequence: SequenceLast}, Payload: []byte{0x01}})
	if err != nil || !done || !bytes.Equal(out, []byte{0x01}) {
		t.Fatalf("lone last: out=%v done=%v err=%v", out, done, err)
	}

	_, _, err = asm.Push(Frame{Header: Header{Sequence: SequenceContinue}, Payload: []byte{0x02}})
	if !errors.Is(err, ErrUnexpectedSequence) {
		t.Fatalf("expected ErrUnexpectedSequence, got %v", err)
	}

	if _, _, err := asm.Push(Frame{Header: Header{Index: 1, Sequence: SequenceFirst}}); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, _, err = asm.Push(Frame{Header: Header{Index: 2, Sequence: SequenceLast}})
	if !errors.Is(err, ErrUnexpectedSequence) {
		t.Fatalf("expected index mismatch error, got %v", err)
	}
	if asm.Active() {
		t.Fatalf("assembler should reset after mismatch")
	}
}

func TestAssemblerDropsStaleSequence(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	dropped := -1
	asm := NewAssembler(WithAssemblerClock(clock.Now), WithStaleHook(func(n int) { dropped = n }))

	if _, _, err := asm.Push(Frame{Header: Header{Sequence: SequenceFirst}, Payload: []byte{0x01}}); err != nil {
		t.Fatalf("first: %v", err)
	}
	clock.Advance(MultiFrameTimeout + time.Millisecond)

	out, done, err := asm.Push(Frame{Header: Header{Sequence: SequenceLast}, Payload: []byte{0x31}})
	if err != nil || !done || !bytes.Equal(out, []byte{0x31}) {
		t.Fatalf("expected lone last after stale first: out=%v done=%v err=%v", out, done, err)
	}
	if dropped != 1 {
		t.Fatalf("expected stale hook with 1 buffered byte, got %d", dropped)
	}
}

func TestAssemblerWithinTimeoutJoins(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	asm := NewAssembler(WithAssemblerClock(clock.Now), WithAssemblerTimeout(50*time.Millisecond))

	if _, _, err := asm.Push(Frame{Header: Header{Index: 3, Sequence: SequenceFirst}, Payload: []byte{0x01}}); err != nil {
		t.Fatalf("first: %v", err)
	}
	clock.Advance(50 * time.Millisecond)
	if _, _, err := asm.Push(Frame{Header: Header{Index: 3, Sequence: SequenceContinue}, Payload: []byte{0x02}}); err != nil {
		t.Fatalf("continue: %v", err)
	}
	clock.Advance(50 * time.Millisecond)
	out, done, err := asm.Push(Frame{Header: Header{Index: 3, Sequence: SequenceLast}, Payload: []byte{0x03}})
	if err != nil || !done || !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Fatalf("unexpected join: out=%v done=%v err=%v", out, done, err)
	}
}

func TestAssemblerCapsMessageLength(t *testing.T) {
	asm := NewAssembler(WithMaxMessage(600))
	chunk := bytes.Repeat([]byte{0xAA}, MaxPayload)

	if _, _, err := asm.Push(Frame{Header: Header{Sequence: SequenceFirst}, Payload: chunk}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, _, err := asm.Push(Frame{Header: Header{Sequence: SequenceContinue}, Payload: chunk}); err != nil {
		t.Fatalf("continue: %v", err)
	}
	_, _, err := asm.Push(Frame{Header: Header{Sequence: SequenceContinue}, Payload: chunk})
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
	if asm.Active() {
		t.Fatalf("assembler should reset after overflow")
	}
}

func TestSplitSmallPayloadIsSingleLast(t *testing.T) {
	frames := Split([]byte{0x02}, 5, 0)
	if len(frames) != 1 || frames[0].Header.Sequence != SequenceLast || frames[0].Header.Index != 5 {
		t.Fatalf("unexpected split: %+v", frames)
	}
}
