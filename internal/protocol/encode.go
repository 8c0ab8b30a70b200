package protocol

import "fmt"

const (
	zoneStatusRecordLen = 5
	zoneHeaderLen       = 3
	pointLen            = 4
)

// EncodePayload serializes code and params into a command payload. Values
// are validated first; a Go type that does not match the command is a
// caller bug reported as ErrInvalidParams.
func EncodePayload(code CommandCode, params any) ([]byte, error) {
	if !code.HasParams() {
		return []byte{byte(code)}, nil
	}

	switch code {
	case CmdZoneConfig:
		zones, ok := params.([]ZoneConfig)
		if !ok {
			return nil, paramsError(code, params)
		}
		return encodeZoneConfig(zones)
	case CmdZoneStatus:
		zones, ok := params.([]ZoneStatus)
		if !ok {
			return nil, paramsError(code, params)
		}
		return encodeZoneStatus(zones)
	case CmdConfig:
		cfg, ok := params.(Config)
		if !ok {
			return nil, paramsError(code, params)
		}
		return encodeConfig(cfg)
	case CmdRequestZoneStatus, CmdRequestZoneConfig:
		id, err := zoneIDParam(code, params)
		if err != nil {
			return nil, err
		}
		return appendUint16([]byte{byte(code)}, int(id)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, code)
	}
}

// Encode is EncodePayload for a Command value.
func Encode(cmd Command) ([]byte, error) {
	return EncodePayload(cmd.Code, cmd.Params)
}

func encodeZoneConfig(zones []ZoneConfig) ([]byte, error) {
	size := 1
	for _, z := range zones {
		size += zoneHeaderLen + pointLen*len(z.Points)
	}
	out := make([]byte, 0, size)
	out = append(out, byte(CmdZoneConfig))
	for _, z := range zones {
		if err := ValidateZone(z); err != nil {
			return nil, err
		}
		out = appendUint16(out, z.ZoneID)
		out = append(out, uint8(len(z.Points)))
		for _, p := range z.Points {
			out = appendUint16(out, int(int16(p.X)))
			out = appendUint16(out, int(int16(p.Y)))
		}
	}
	return out, nil
}

func encodeZoneStatus(zones []ZoneStatus) ([]byte, error) {
	out := make([]byte, 0, 1+zoneStatusRecordLen*len(zones))
	out = append(out, byte(CmdZoneStatus))
	for _, z := range zones {
		if z.ZoneID < 0 || z.ZoneID > MaxZoneID {
			return nil, invalid("zone_id", "%d outside 0..%d", z.ZoneID, MaxZoneID)
		}
		if !z.Status.Valid() {
			return nil, invalid("status", "zone %d has unknown state %s", z.ZoneID, z.Status)
		}
		if z.Count < 0 || z.Count > MaxZoneCount {
			return nil, invalid("count", "zone %d count %d outside 0..%d", z.ZoneID, z.Count, MaxZoneCount)
		}
		out = appendUint16(out, z.ZoneID)
		out = append(out, byte(z.Status))
		out = appendUint16(out, z.Count)
	}
	return out, nil
}

func encodeConfig(c Config) ([]byte, error) {
	if err := ValidateConfig(c); err != nil {
		return nil, err
	}
	if c.Inertia > maxConfigValue {
		return nil, invalid("inertia", "%d does not fit in one byte", c.Inertia)
	}
	out := []byte{byte(CmdConfig), uint8(c.ConfidenceThreshold), uint8(c.Inertia)}
	out = appendBool(out, c.Tracking)
	out = appendBool(out, c.Notifications)
	return out, nil
}

func zoneIDParam(code CommandCode, params any) (ZoneID, error) {
	var id ZoneID
	switch v := params.(type) {
	case ZoneID:
		id = v
	case int:
		id = ZoneID(v)
	case uint16:
		id = ZoneID(v)
	default:
		return 0, paramsError(code, params)
	}
	if err := validateZoneID("zone_id", id); err != nil {
		return 0, err
	}
	return id, nil
}

func paramsError(code CommandCode, params any) error {
	return fmt.Errorf("%w: %s does not take %T", ErrInvalidParams, code, params)
}
