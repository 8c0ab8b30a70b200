package protocol

import "math"

const (
	MinZonePoints  = 3
	MaxZoneID      = math.MaxUint16
	MaxZoneCount   = math.MaxUint16
	MaxThreshold   = 100
	maxZonePoints  = math.MaxUint8
	maxConfigValue = math.MaxUint8
)

// ValidateConfig checks Config ranges before it is encoded or applied.
func ValidateConfig(c Config) error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > MaxThreshold {
		return invalid("confidence_threshold", "%d outside 0..%d", c.ConfidenceThreshold, MaxThreshold)
	}
	if c.Inertia < 0 {
		return invalid("inertia", "%d is negative", c.Inertia)
	}
	return nil
}

// ValidateZone checks a zone polygon before it is encoded or applied.
func ValidateZone(z ZoneConfig) error {
	if z.ZoneID < 0 || z.ZoneID > MaxZoneID {
		return invalid("zone_id", "%d outside 0..%d", z.ZoneID, MaxZoneID)
	}
	if len(z.Points) < MinZonePoints {
		return invalid("points", "zone %d has %d points, need at least %d", z.ZoneID, len(z.Points), MinZonePoints)
	}
	if len(z.Points) > maxZonePoints {
		return invalid("points", "zone %d has %d points, at most %d fit", z.ZoneID, len(z.Points), maxZonePoints)
	}
	for i, p := range z.Points {
		if p.X < math.MinInt16 || p.X > math.MaxInt16 || p.Y < math.MinInt16 || p.Y > math.MaxInt16 {
			return invalid("points", "zone %d point %d (%d,%d) outside int16", z.ZoneID, i, p.X, p.Y)
		}
	}
	return nil
}

// ValidateZones validates each zone and rejects duplicate ids.
func ValidateZones(zones []ZoneConfig) error {
	seen := make(map[int]struct{}, len(zones))
	for _, z := range zones {
		if err := ValidateZone(z); err != nil {
			return err
		}
		if _, dup := seen[z.ZoneID]; dup {
			return invalid("zone_id", "duplicate zone %d", z.ZoneID)
		}
		seen[z.ZoneID] = struct{}{}
	}
	return nil
}

func validateZoneID(field string, id ZoneID) error {
	if id < 0 || int(id) > MaxZoneID {
		return invalid(field, "%d outside 0..%d", int(id), MaxZoneID)
	}
	return nil
}
