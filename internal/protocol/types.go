package protocol

import (
	"fmt"
	"strings"
)

// CommandCode is the first payload byte of every frame.
type CommandCode uint8

const (
	CmdPing              CommandCode = 0x01
	CmdPong              CommandCode = 0x02
	CmdACK               CommandCode = 0x11
	CmdNAK               CommandCode = 0xEE
	CmdZoneStatus        CommandCode = 0x20
	CmdConfig            CommandCode = 0x21
	CmdZoneConfig        CommandCode = 0x22
	CmdRequestZoneStatus CommandCode = 0x30
	CmdRequestConfig     CommandCode = 0x31
	CmdRestart           CommandCode = 0x32
	CmdRequestZoneConfig CommandCode = 0x33
)

var commandNames = map[CommandCode]string{
	CmdPing:              "Ping",
	CmdPong:              "Pong",
	CmdACK:               "ACK",
	CmdNAK:               "NAK",
	CmdZoneStatus:        "ZoneStatus",
	CmdConfig:            "Config",
	CmdZoneConfig:        "ZoneConfig",
	CmdRequestZoneStatus: "RequestZoneStatus",
	CmdRequestConfig:     "RequestConfig",
	CmdRestart:           "Restart",
	CmdRequestZoneConfig: "RequestZoneConfig",
}

// Known reports whether c is part of the protocol.
func (c CommandCode) Known() bool {
	_, ok := commandNames[c]
	return ok
}

func (c CommandCode) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02X)", uint8(c))
}

// HasParams reports whether c carries anything beyond the command byte.
func (c CommandCode) HasParams() bool {
	switch c {
	case CmdPing, CmdPong, CmdACK, CmdNAK, CmdRequestConfig, CmdRestart:
		return false
	default:
		return true
	}
}

// ZoneState is the occupancy state reported per zone.
type ZoneState uint8

const (
	ZoneEmpty       ZoneState = 0x00
	ZoneOccupied    ZoneState = 0x01
	ZoneUnavailable ZoneState = 0xFF
)

func (s ZoneState) Valid() bool {
	switch s {
	case ZoneEmpty, ZoneOccupied, ZoneUnavailable:
		return true
	default:
		return false
	}
}

func (s ZoneState) String() string {
	switch s {
	case ZoneEmpty:
		return "Empty"
	case ZoneOccupied:
		return "Occupied"
	case ZoneUnavailable:
		return "Unavailable"
	default:
		return fmt.Sprintf("ZoneState(0x%02X)", uint8(s))
	}
}

func (s ZoneState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ZoneState) UnmarshalText(b []byte) error {
	for _, v := range []ZoneState{ZoneEmpty, ZoneOccupied, ZoneUnavailable} {
		if strings.EqualFold(string(b), v.String()) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidZoneState, b)
}

// Config is the detector configuration owned by the host application.
type Config struct {
	ConfidenceThreshold int  `json:"confidence_threshold" toml:"confidence_threshold"`
	Inertia             int  `json:"inertia" toml:"inertia"`
	Tracking            bool `json:"tracking" toml:"tracking"`
	Notifications       bool `json:"notifications" toml:"notifications"`
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 25,
		Inertia:             3,
		Tracking:            false,
		Notifications:       true,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("threshold:%d, inertia:%d, track:%t, notify:%t",
		c.ConfidenceThreshold, c.Inertia, c.Tracking, c.Notifications)
}

// Point is one polygon vertex in image coordinates.
type Point struct {
	X int `json:"x" toml:"x"`
	Y int `json:"y" toml:"y"`
}

// ZoneConfig is a polygon boundary identified by ZoneID.
type ZoneConfig struct {
	ZoneID int     `json:"zone_id" toml:"zone_id"`
	Points []Point `json:"points" toml:"points"`
}

// Equal compares id and points in order.
func (z ZoneConfig) Equal(o ZoneConfig) bool {
	if z.ZoneID != o.ZoneID || len(z.Points) != len(o.Points) {
		return false
	}
	for i := range z.Points {
		if z.Points[i] != o.Points[i] {
			return false
		}
	}
	return true
}

// ZoneStatus refines ZoneConfig with occupancy. Points may be empty when
// only the status travels.
type ZoneStatus struct {
	ZoneConfig
	Status ZoneState `json:"status" toml:"status"`
	Count  int       `json:"count" toml:"count"`
}

// Equal compares identity and status; points are not part of a status record.
func (z ZoneStatus) Equal(o ZoneStatus) bool {
	return z.ZoneID == o.ZoneID && z.Status == o.Status && z.Count == o.Count
}

func (z ZoneStatus) String() string {
	return fmt.Sprintf("zone:%d, status:%s, count:%d", z.ZoneID, z.Status, z.Count)
}

// ZoneID is the parameter of RequestZoneStatus and RequestZoneConfig.
// Zero selects every zone.
type ZoneID int

const AllZones ZoneID = 0

// Command pairs a code with its typed parameters:
//
//	no-parameter commands   nil
//	CmdZoneConfig           []ZoneConfig
//	CmdZoneStatus           []ZoneStatus
//	CmdConfig               Config
//	CmdRequestZone*         ZoneID
type Command struct {
	Code   CommandCode
	Params any
}

func (c Command) String() string {
	if c.Params == nil {
		return c.Code.String()
	}
	return fmt.Sprintf("%s %v", c.Code, c.Params)
}
