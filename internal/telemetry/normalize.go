package telemetry

import (
	"log/slog"

	"fleetconsole.org/livemap/internal/logging"
)

const (
	dropMissingLatitude  = "missing_latitude"
	dropMissingLongitude = "missing_longitude"
	dropZeroCoordinates  = "zero_coordinates"
)

// Normalizer turns raw telemetry into canonical vehicles. Rejected records
// are logged and dropped; they are never reported to the caller as errors.
type Normalizer struct {
	logger *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize is the package-level form of (*Normalizer).Normalize without logging.
func Normalize(raw RawRecord) (Vehicle, bool) {
	v, _ := normalize(raw)
	return v, v.ID != ""
}

func (n *Normalizer) Normalize(raw RawRecord) (Vehicle, bool) {
	v, reason := normalize(raw)
	if reason != "" {
		attrs := []slog.Attr{}
		if id, ok := IdentityAliases.Text(raw); ok {
			attrs = append(attrs, slog.String("source_id", id))
		}
		logging.LogDroppedRecord(n.logger, reason, attrs...)
		return Vehicle{}, false
	}
	return v, true
}

// NormalizeAll normalizes a batch, preserving order and dropping rejects.
// The result is never nil.
func (n *Normalizer) NormalizeAll(raws []RawRecord) []Vehicle {
	out := make([]Vehicle, 0, len(raws))
	for _, raw := range raws {
		if v, ok := n.Normalize(raw); ok {
			out = append(out, v)
		}
	}
	return out
}

func normalize(raw RawRecord) (Vehicle, string) {
	lat, ok := LatitudeAliases.Number(raw)
	if !ok {
		return Vehicle{}, dropMissingLatitude
	}
	lng, ok := LongitudeAliases.Number(raw)
	if !ok {
		return Vehicle{}, dropMissingLongitude
	}
	// (0,0) is what uninitialized GPS units report.
	if lat == 0 && lng == 0 {
		return Vehicle{}, dropZeroCoordinates
	}

	id, ok := IdentityAliases.Text(raw)
	if !ok {
		id = formatNumber(lat) + "," + formatNumber(lng)
	}
	name, ok := NameAliases.Text(raw)
	if !ok {
		name = id
	}

	v := Vehicle{
		ID:     id,
		Name:   name,
		Lat:    lat,
		Lng:    lng,
		Status: IgnitionOff,
	}
	if speed, ok := SpeedAliases.Number(raw); ok {
		v.Speed = &speed
	}
	if heading, ok := HeadingAliases.Number(raw); ok {
		v.Heading = &heading
	}
	if ts, ok := TimestampAliases.Text(raw); ok {
		v.Timestamp = &ts
	}
	if ign, ok := IgnitionAliases.Value(raw); ok {
		v.Status = ToIgnition(ign)
	}
	if len(raw) > 0 {
		v.Extra = make(map[string]any, len(raw))
		for k, val := range raw {
			v.Extra[k] = val
		}
	}
	return v, ""
}
