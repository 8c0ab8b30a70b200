// Package serial opens a UART as a raw, non-blocking byte channel for the
// transport layer.
package serial

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnsupportedBaud     = errors.New("serial: unsupported baud rate")
	ErrUnsupportedPlatform = errors.New("serial: only supported on linux")
	ErrInvalidParity       = errors.New("serial: invalid parity")
	ErrInvalidStopBits     = errors.New("serial: stop bits must be 1 or 2")
	ErrClosed              = errors.New("serial: port closed")
)

type Parity byte

const (
	ParityNone Parity = 'N'
	ParityEven Parity = 'E'
	ParityOdd  Parity = 'O'
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return fmt.Sprintf("Parity(%q)", byte(p))
	}
}

// ParseParity accepts the single-letter and spelled-out forms.
func ParseParity(raw string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "n", "none":
		return ParityNone, nil
	case "e", "even":
		return ParityEven, nil
	case "o", "odd":
		return ParityOdd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidParity, raw)
	}
}

// UnmarshalText lets config files spell parity as "E" or "even".
func (p *Parity) UnmarshalText(b []byte) error {
	v, err := ParseParity(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Parity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// SupportedBauds lists the rates Open accepts.
var SupportedBauds = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400}

type Config struct {
	Device   string `toml:"device"`
	Baud     int    `toml:"baud"`
	Parity   Parity `toml:"parity"`
	StopBits int    `toml:"stop_bits"`
}

// DefaultConfig matches the detector board's UART.
func DefaultConfig() Config {
	return Config{
		Device:   "/dev/ttyAMA0",
		Baud:     19200,
		Parity:   ParityEven,
		StopBits: 1,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Device) == "" {
		return errors.New("serial: device path is required")
	}
	if !slices.Contains(SupportedBauds, c.Baud) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, c.Baud)
	}
	switch c.Parity {
	case ParityNone, ParityEven, ParityOdd:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidParity, c.Parity)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("%w: %d", ErrInvalidStopBits, c.StopBits)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s %d 8%c%d", c.Device, c.Baud, byte(c.Parity), c.StopBits)
}
