// Package config loads the parkbeam service file: serial link, protocol
// timing, zone file, detector settings, admin listener and log level.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/parkbeam/internal/logging"
	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/danmuck/parkbeam/internal/serial"
	"github.com/danmuck/parkbeam/internal/transport"
)

const DefaultPath = "parkbeam.toml"

type Config struct {
	Serial   serial.Config
	Protocol ProtocolConfig
	Zones    ZonesConfig
	Detector protocol.Config
	Admin    AdminConfig
	Log      LogConfig
}

type ProtocolConfig struct {
	Version           uint8
	PollInterval      time.Duration
	MultiFrameTimeout time.Duration
	MaxFramePayload   int
}

type ZonesConfig struct {
	// File is a .toml zone file or a legacy CSV file. Empty starts with no
	// zones.
	File string
}

type AdminConfig struct {
	// Listen is the admin HTTP address; empty disables the listener.
	Listen      string
	CorsOrigins []string
}

type LogConfig struct {
	Level string
}

func Default() Config {
	tc := transport.DefaultConfig()
	return Config{
		Serial: serial.DefaultConfig(),
		Protocol: ProtocolConfig{
			Version:           tc.Version,
			PollInterval:      tc.PollInterval,
			MultiFrameTimeout: tc.MultiFrameTimeout,
			MaxFramePayload:   tc.MaxFramePayload,
		},
		Zones:    ZonesConfig{File: "zones.csv"},
		Detector: protocol.DefaultConfig(),
		Log:      LogConfig{Level: "info"},
	}
}

// Transport derives the transport settings, labelled with the device path.
func (c Config) Transport() transport.Config {
	tc := transport.DefaultConfig()
	tc.Label = c.Serial.Device
	tc.Version = c.Protocol.Version
	tc.PollInterval = c.Protocol.PollInterval
	tc.MultiFrameTimeout = c.Protocol.MultiFrameTimeout
	tc.MaxFramePayload = c.Protocol.MaxFramePayload
	return tc
}

func (c Config) Validate() error {
	var errs []error
	if err := c.Serial.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Protocol.Version == 0 {
		errs = append(errs, errors.New("protocol.version must be non-zero"))
	}
	if c.Protocol.PollInterval <= 0 {
		errs = append(errs, errors.New("protocol.poll_interval must be positive"))
	}
	if c.Protocol.MultiFrameTimeout <= 0 {
		errs = append(errs, errors.New("protocol.multi_frame_timeout must be positive"))
	}
	if c.Protocol.MaxFramePayload < 1 || c.Protocol.MaxFramePayload > 255 {
		errs = append(errs, fmt.Errorf("protocol.max_frame_payload %d outside 1..255", c.Protocol.MaxFramePayload))
	}
	if err := protocol.ValidateConfig(c.Detector); err != nil {
		errs = append(errs, fmt.Errorf("detector: %w", err))
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level %q is not a level", c.Log.Level))
	}
	return errors.Join(errs...)
}

type fileConfig struct {
	Serial struct {
		Device   string `toml:"device"`
		Baud     int    `toml:"baud"`
		Parity   string `toml:"parity"`
		StopBits int    `toml:"stop_bits"`
	} `toml:"serial"`
	Protocol struct {
		Version           int    `toml:"version"`
		PollInterval      string `toml:"poll_interval"`
		MultiFrameTimeout string `toml:"multi_frame_timeout"`
		MaxFramePayload   int    `toml:"max_frame_payload"`
	} `toml:"protocol"`
	Zones struct {
		File string `toml:"file"`
	} `toml:"zones"`
	Detector struct {
		ConfidenceThreshold int  `toml:"confidence_threshold"`
		Inertia             int  `toml:"inertia"`
		Tracking            bool `toml:"tracking"`
		Notifications       bool `toml:"notifications"`
	} `toml:"detector"`
	Admin struct {
		Listen      string   `toml:"listen"`
		CorsOrigins []string `toml:"cors_origins"`
	} `toml:"admin"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load reads path over Default. Keys absent from the file keep their
// default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return fromFile(raw, meta)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return fromFile(raw, meta)
}

func fromFile(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg := Default()

	if meta.IsDefined("serial", "device") {
		cfg.Serial.Device = strings.TrimSpace(raw.Serial.Device)
	}
	if meta.IsDefined("serial", "baud") {
		cfg.Serial.Baud = raw.Serial.Baud
	}
	if meta.IsDefined("serial", "parity") {
		p, err := serial.ParseParity(raw.Serial.Parity)
		if err != nil {
			return Config{}, fmt.Errorf("parse serial.parity: %w", err)
		}
		cfg.Serial.Parity = p
	}
	if meta.IsDefined("serial", "stop_bits") {
		cfg.Serial.StopBits = raw.Serial.StopBits
	}

	if meta.IsDefined("protocol", "version") {
		if raw.Protocol.Version < 1 || raw.Protocol.Version > 255 {
			return Config{}, fmt.Errorf("protocol.version %d outside 1..255", raw.Protocol.Version)
		}
		cfg.Protocol.Version = uint8(raw.Protocol.Version)
	}
	if meta.IsDefined("protocol", "poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Protocol.PollInterval))
		if err != nil {
			return Config{}, fmt.Errorf("parse protocol.poll_interval: %w", err)
		}
		cfg.Protocol.PollInterval = d
	}
	if meta.IsDefined("protocol", "multi_frame_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Protocol.MultiFrameTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse protocol.multi_frame_timeout: %w", err)
		}
		cfg.Protocol.MultiFrameTimeout = d
	}
	if meta.IsDefined("protocol", "max_frame_payload") {
		cfg.Protocol.MaxFramePayload = raw.Protocol.MaxFramePayload
	}

	if meta.IsDefined("zones", "file") {
		cfg.Zones.File = strings.TrimSpace(raw.Zones.File)
	}

	if meta.IsDefined("detector", "confidence_threshold") {
		cfg.Detector.ConfidenceThreshold = raw.Detector.ConfidenceThreshold
	}
	if meta.IsDefined("detector", "inertia") {
		cfg.Detector.Inertia = raw.Detector.Inertia
	}
	if meta.IsDefined("detector", "tracking") {
		cfg.Detector.Tracking = raw.Detector.Tracking
	}
	if meta.IsDefined("detector", "notifications") {
		cfg.Detector.Notifications = raw.Detector.Notifications
	}

	if meta.IsDefined("admin", "listen") {
		cfg.Admin.Listen = strings.TrimSpace(raw.Admin.Listen)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = normalizeOrigins(raw.Admin.CorsOrigins)
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	return out
}
