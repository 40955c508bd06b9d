package telemetry

import (
	"encoding/json"
	"math"
)

// RawRecord is one telemetry report in whatever shape the backend produced it.
type RawRecord map[string]any

type Ignition string

const (
	IgnitionOn  Ignition = "ignition-on"
	IgnitionOff Ignition = "ignition-off"
)

// Vehicle is the canonical position record published to views.
type Vehicle struct {
	ID        string
	Name      string
	Lat       float64
	Lng       float64
	Speed     *float64
	Heading   *float64
	Timestamp *string
	Status    Ignition

	// Extra carries the source fields through untouched. Canonical fields
	// always win over keys of the same name when serialized.
	Extra map[string]any
}

// Valid reports whether v satisfies the published-vehicle invariant.
func (v Vehicle) Valid() bool {
	return v.ID != "" && isFinite(v.Lat) && isFinite(v.Lng) && !(v.Lat == 0 && v.Lng == 0)
}

func (v Vehicle) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Extra)+8)
	for k, val := range v.Extra {
		out[k] = val
	}
	out["id"] = v.ID
	out["name"] = v.Name
	out["lat"] = v.Lat
	out["lng"] = v.Lng
	out["status"] = v.Status
	if v.Speed != nil {
		out["speed"] = *v.Speed
	}
	if v.Heading != nil {
		out["heading"] = *v.Heading
	}
	if v.Timestamp != nil {
		out["timestamp"] = *v.Timestamp
	}
	return json.Marshal(out)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
