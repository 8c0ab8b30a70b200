package protocol

import "fmt"

// DecodePayload parses a command payload into its code and typed params.
// List payloads are consumed record by record until the payload ends
// exactly on a record boundary. Fixed-size payloads must carry no extra
// bytes.
func DecodePayload(payload []byte) (CommandCode, any, error) {
	if len(payload) == 0 {
		return 0, nil, ErrEmptyPayload
	}
	code := CommandCode(payload[0])
	if !code.Known() {
		return code, nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, payload[0])
	}
	if !code.HasParams() {
		if len(payload) > 1 {
			return code, nil, fmt.Errorf("%w: %s takes no params, got %d bytes", ErrInvalidParams, code, len(payload)-1)
		}
		return code, nil, nil
	}

	cur := &cursor{buf: payload[1:]}
	var (
		params any
		err    error
	)
	switch code {
	case CmdZoneConfig:
		params, err = decodeZoneConfig(cur)
	case CmdZoneStatus:
		params, err = decodeZoneStatus(cur)
	case CmdConfig:
		params, err = decodeConfig(cur)
	case CmdRequestZoneStatus, CmdRequestZoneConfig:
		params, err = decodeZoneID(cur)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownCommand, code)
	}
	if err == nil && !cur.done() {
		err = fmt.Errorf("%w: %d trailing bytes", ErrInvalidParams, len(cur.buf)-cur.off)
	}
	if err != nil {
		return code, nil, fmt.Errorf("decode %s: %w", code, err)
	}
	return code, params, nil
}

// Decode is DecodePayload returning a Command value.
func Decode(payload []byte) (Command, error) {
	code, params, err := DecodePayload(payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Code: code, Params: params}, nil
}

func decodeZoneConfig(cur *cursor) ([]ZoneConfig, error) {
	zones := make([]ZoneConfig, 0)
	for !cur.done() {
		id, err := cur.uint16("zone_id")
		if err != nil {
			return nil, err
		}
		n, err := cur.uint8("point_count")
		if err != nil {
			return nil, err
		}
		zone := ZoneConfig{ZoneID: int(id), Points: make([]Point, 0, n)}
		for i := 0; i < int(n); i++ {
			x, err := cur.int16("point.x")
			if err != nil {
				return nil, err
			}
			y, err := cur.int16("point.y")
			if err != nil {
				return nil, err
			}
			zone.Points = append(zone.Points, Point{X: int(x), Y: int(y)})
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

func decodeZoneStatus(cur *cursor) ([]ZoneStatus, error) {
	zones := make([]ZoneStatus, 0)
	for !cur.done() {
		if err := cur.need(zoneStatusRecordLen, "zone status record"); err != nil {
			return nil, err
		}
		id, _ := cur.uint16("zone_id")
		raw, _ := cur.uint8("status")
		count, _ := cur.uint16("count")
		state := ZoneState(raw)
		if !state.Valid() {
			return nil, fmt.Errorf("%w: zone %d state 0x%02X", ErrInvalidZoneState, id, raw)
		}
		zones = append(zones, ZoneStatus{
			ZoneConfig: ZoneConfig{ZoneID: int(id)},
			Status:     state,
			Count:      int(count),
		})
	}
	return zones, nil
}

func decodeConfig(cur *cursor) (Config, error) {
	if err := cur.need(4, "config"); err != nil {
		return Config{}, err
	}
	threshold, _ := cur.uint8("confidence_threshold")
	inertia, _ := cur.uint8("inertia")
	tracking, err := cur.bool("tracking")
	if err != nil {
		return Config{}, err
	}
	notifications, err := cur.bool("notifications")
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfidenceThreshold: int(threshold),
		Inertia:             int(inertia),
		Tracking:            tracking,
		Notifications:       notifications,
	}, nil
}

func decodeZoneID(cur *cursor) (ZoneID, error) {
	id, err := cur.uint16("zone_id")
	if err != nil {
		return 0, err
	}
	return ZoneID(id), nil
}
