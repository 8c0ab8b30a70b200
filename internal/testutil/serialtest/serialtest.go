// Package serialtest provides an in-memory serial channel and a wire
// parser for transport-level tests.
package serialtest

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/danmuck/parkbeam/internal/protocol/frame"
)

// Channel hands out queued chunks one Read at a time and records every
// Write in order. Read never blocks.
type Channel struct {
	mu      sync.Mutex
	reads   [][]byte
	writes  bytes.Buffer
	readErr error
	closed  bool
}

func (c *Channel) Push(chunks ...[]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range chunks {
		c.reads = append(c.reads, append([]byte(nil), ch...))
	}
}

// PushBytes queues b as single-byte reads.
func (c *Channel) PushBytes(b []byte) {
	for i := range b {
		c.Push(b[i : i+1])
	}
}

func (c *Channel) SetReadErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *Channel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return 0, c.readErr
	}
	if len(c.reads) == 0 {
		return 0, nil
	}
	n := copy(p, c.reads[0])
	if n < len(c.reads[0]) {
		c.reads[0] = c.reads[0][n:]
	} else {
		c.reads = c.reads[1:]
	}
	return n, nil
}

func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes.Write(p)
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Written returns a copy of everything written so far.
func (c *Channel) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.writes.Bytes()...)
}

// Pending reports how many queued reads are left.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reads)
}

// Sent is one command recovered from the write stream.
type Sent struct {
	Index   uint8
	Command protocol.Command
}

// Decode walks back-to-back frames, failing t on any framing, checksum or
// command error.
func Decode(t testing.TB, data []byte) []Sent {
	t.Helper()
	var (
		out []Sent
		asm frame.Assembler
	)
	for len(data) > 0 {
		if len(data) < frame.HeaderLen {
			t.Fatalf("trailing %d bytes do not form a header", len(data))
		}
		h, err := frame.DecodeHeader(data[:frame.HeaderLen])
		if err != nil {
			t.Fatalf("decode header: %v", err)
		}
		total := frame.HeaderLen + int(h.Size) + frame.CRCLen
		if len(data) < total {
			t.Fatalf("frame needs %d bytes, have %d", total, len(data))
		}
		if frame.CRC16(data[:total]) != 0 {
			t.Fatalf("checksum mismatch in frame % X", data[:total])
		}
		payload, done, err := asm.Push(frame.Frame{Header: h, Payload: data[frame.HeaderLen : frame.HeaderLen+int(h.Size)]})
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		if done {
			cmd, err := protocol.Decode(payload)
			if err != nil {
				t.Fatalf("decode command: %v", err)
			}
			out = append(out, Sent{Index: h.Index, Command: cmd})
		}
		data = data[total:]
	}
	return out
}

// Frame encodes cmd as a single Last frame with the given index.
func Frame(t testing.TB, cmd protocol.Command, index uint8) []byte {
	t.Helper()
	payload, err := protocol.Encode(cmd)
	if err != nil {
		t.Fatalf("encode %s: %v", cmd.Code, err)
	}
	b, err := frame.Encode(frame.Header{Version: frame.Version, Index: index, Sequence: frame.SequenceLast}, payload)
	if err != nil {
		t.Fatalf("frame %s: %v", cmd.Code, err)
	}
	return b
}

// WaitFor polls cond until it holds or the deadline passes.
func WaitFor(t testing.TB, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
