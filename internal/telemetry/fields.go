package telemetry

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Accessor extracts one candidate value from a raw record. ok is false when
// the value is absent.
type Accessor func(raw RawRecord) (value any, ok bool)

// Field returns an accessor for a key. Dotted keys walk nested objects, so
// "position.latitude" reads raw["position"]["latitude"].
func Field(path string) Accessor {
	parts := strings.Split(path, ".")
	return func(raw RawRecord) (any, bool) {
		var cur any = map[string]any(raw)
		for _, p := range parts {
			m, ok := asObject(cur)
			if !ok {
				return nil, false
			}
			if cur, ok = m[p]; !ok {
				return nil, false
			}
		}
		if cur == nil {
			return nil, false
		}
		return cur, true
	}
}

// Aliases is an ordered list of field names tried in sequence; the first
// usable value wins.
type Aliases []string

func (a Aliases) accessors() []Accessor {
	out := make([]Accessor, len(a))
	for i, name := range a {
		out[i] = Field(name)
	}
	return out
}

// Number returns the first alias whose value coerces to a finite number.
func (a Aliases) Number(raw RawRecord) (float64, bool) {
	for _, get := range a.accessors() {
		if v, ok := get(raw); ok {
			if f, ok := ToFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// Text returns the first alias holding a non-empty scalar, rendered as a string.
func (a Aliases) Text(raw RawRecord) (string, bool) {
	for _, get := range a.accessors() {
		if v, ok := get(raw); ok {
			if s, ok := toText(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

// Value returns the first present value without coercion.
func (a Aliases) Value(raw RawRecord) (any, bool) {
	for _, get := range a.accessors() {
		if v, ok := get(raw); ok {
			return v, true
		}
	}
	return nil, false
}

var (
	LatitudeAliases = Aliases{
		"latitude", "lat", "Latitude", "Lat", "LAT",
		"position.latitude", "position.lat", "location.latitude", "location.lat", "gps.lat", "coords.lat",
	}
	LongitudeAliases = Aliases{
		"longitude", "lng", "lon", "long", "Longitude", "Lng", "Lon", "LNG", "LON",
		"position.longitude", "position.lng", "position.lon", "location.longitude", "location.lng", "location.lon",
		"gps.lng", "gps.lon", "coords.lng",
	}
	SpeedAliases = Aliases{
		"speed", "Speed", "SPEED", "speedKmh", "speed_kmh", "velocity", "position.speed", "gps.speed",
	}
	HeadingAliases = Aliases{
		"heading", "Heading", "course", "Course", "bearing", "Bearing", "direction", "Direction", "angle",
		"position.heading", "position.bearing", "gps.course",
	}
	TimestampAliases = Aliases{
		"timestamp", "Timestamp", "time", "Time", "gpsTime", "gps_time", "GpsTime", "updatedAt", "updated_at",
		"lastUpdate", "position.timestamp",
	}
	IgnitionAliases = Aliases{
		"ignition", "Ignition", "IGNITION", "ignitionOn", "acc", "ACC", "engineOn", "engine", "status", "Status",
	}
	NameAliases = Aliases{
		"name", "Name", "vehicleName", "displayName", "label",
	}

	// IdentityAliases is in priority order: vehicle number, device number,
	// IMEI, generic id, device id.
	IdentityAliases = Aliases{
		"vehicleNo", "vehicle_no", "VehicleNo", "vehicleNumber", "plateNo",
		"deviceNo", "device_no", "DeviceNo",
		"imei", "IMEI", "Imei",
		"id", "ID", "Id",
		"deviceId", "device_id", "DeviceId", "DeviceID",
	}
)

// ToFloat coerces v to a finite number. nil, empty strings, non-numeric
// strings, NaN and ±Inf are all absent rather than zero.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToIgnition accepts true, numeric 1, and "1"/"true"/"on" in any case.
// Everything else, including absence, is off.
func ToIgnition(v any) Ignition {
	switch s := v.(type) {
	case bool:
		if s {
			return IgnitionOn
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "on":
			return IgnitionOn
		}
	default:
		if f, ok := ToFloat(v); ok && f == 1 {
			return IgnitionOn
		}
	}
	return IgnitionOff
}

func toText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case json.Number:
		return s.String(), s != ""
	case bool:
		return "", false
	}
	if f, ok := ToFloat(v); ok {
		return formatNumber(f), true
	}
	return "", false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case RawRecord:
		return m, true
	}
	return nil, false
}
