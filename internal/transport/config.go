package transport

import (
	"time"

	"github.com/danmuck/parkbeam/internal/protocol/frame"
)

// BackoffConfig defines retry delays after channel read errors.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines transport defaults.
type Config struct {
	// Label tags log lines and metrics, usually the serial device path.
	Label             string
	Version           uint8
	PollInterval      time.Duration
	MultiFrameTimeout time.Duration
	ReadBufferSize    int
	// MaxFramePayload caps bytes per frame; larger payloads are sent as a
	// First/Continue/Last sequence.
	MaxFramePayload int
	Backoff         BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Label:             "serial",
		Version:           frame.Version,
		PollInterval:      2 * time.Millisecond,
		MultiFrameTimeout: frame.MultiFrameTimeout,
		ReadBufferSize:    512,
		MaxFramePayload:   frame.MaxPayload,
		Backoff: BackoffConfig{
			InitialDelay: 50 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Label == "" {
		c.Label = def.Label
	}
	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.MultiFrameTimeout <= 0 {
		c.MultiFrameTimeout = def.MultiFrameTimeout
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.MaxFramePayload <= 0 || c.MaxFramePayload > frame.MaxPayload {
		c.MaxFramePayload = def.MaxFramePayload
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	return c
}
