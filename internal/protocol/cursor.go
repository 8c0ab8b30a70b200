package protocol

import (
	"encoding/binary"
	"fmt"
)

// cursor walks a payload with explicit bounds checks. Running out of bytes
// partway through a record is reported as ErrIncompleteRecord, never as a
// clean end of input.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) done() bool {
	return c.off >= len(c.buf)
}

func (c *cursor) need(n int, what string) error {
	if len(c.buf)-c.off < n {
		return fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d",
			ErrIncompleteRecord, what, n, c.off, len(c.buf)-c.off)
	}
	return nil
}

func (c *cursor) uint8(what string) (uint8, error) {
	if err := c.need(1, what); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *cursor) uint16(what string) (uint16, error) {
	if err := c.need(2, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

func (c *cursor) int16(what string) (int16, error) {
	v, err := c.uint16(what)
	return int16(v), err
}

func (c *cursor) bool(what string) (bool, error) {
	v, err := c.uint8(what)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s=%d is not a bool", ErrInvalidParams, what, v)
	}
}

func appendUint16(b []byte, v int) []byte {
	return binary.LittleEndian.AppendUint16(b, uint16(v))
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}
