package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	HeaderLen  = 4
	CRCLen     = 2
	MaxPayload = 0xFF

	Version uint8 = 1
)

var (
	ErrShortHeader        = errors.New("frame: short header")
	ErrInvalidSequence    = errors.New("frame: invalid sequence type")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrChecksum           = errors.New("frame: checksum mismatch")
	ErrUnexpectedSequence = errors.New("frame: unexpected sequence type")
	ErrMessageTooLarge    = errors.New("frame: message too large")
)

// SequenceType marks a frame's position in a multi-frame message.
type SequenceType uint8

const (
	SequenceFirst    SequenceType = 0
	SequenceContinue SequenceType = 1
	SequenceLast     SequenceType = 2
)

func (s SequenceType) Valid() bool {
	return s <= SequenceLast
}

func (s SequenceType) String() string {
	switch s {
	case SequenceFirst:
		return "first"
	case SequenceContinue:
		return "continue"
	case SequenceLast:
		return "last"
	default:
		return fmt.Sprintf("sequence(%d)", uint8(s))
	}
}

// Header is the fixed 4-byte wire header. Size counts payload bytes only.
type Header struct {
	Version  uint8
	Size     uint8
	Index    uint8
	Sequence SequenceType
}

// Frame is one decoded wire unit.
type Frame struct {
	Header  Header
	Payload []byte
}

func EncodeHeader(h Header) []byte {
	return []byte{h.Version, h.Size, h.Index, byte(h.Sequence)}
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	h := Header{
		Version:  b[0],
		Size:     b[1],
		Index:    b[2],
		Sequence: SequenceType(b[3]),
	}
	if !h.Sequence.Valid() {
		return Header{}, fmt.Errorf("%w: %d", ErrInvalidSequence, b[3])
	}
	return h, nil
}

// Encode frames payload behind h and appends the little-endian CRC-16.
// h.Size is always taken from len(payload).
func Encode(h Header, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if !h.Sequence.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSequence, uint8(h.Sequence))
	}
	h.Size = uint8(len(payload))

	out := make([]byte, 0, HeaderLen+len(payload)+CRCLen)
	out = append(out, EncodeHeader(h)...)
	out = append(out, payload...)
	out = binary.LittleEndian.AppendUint16(out, CRC16(out))
	return out, nil
}
