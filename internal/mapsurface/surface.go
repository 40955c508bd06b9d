// Package mapsurface projects tracking and geofence state into the shapes a
// map client draws, and pushes them to connected clients.
package mapsurface

import (
	"sort"
	"time"

	"fleetconsole.org/livemap/internal/geofence"
	"fleetconsole.org/livemap/internal/livetrack"
	"fleetconsole.org/livemap/internal/telemetry"
	"github.com/mmcloughlin/geohash"
	"github.com/twpayne/go-polyline"
)

// CellPrecision is the geohash length attached to markers (~150m cells),
// used by clients to cluster dense fleets.
const CellPrecision = 7

type IconStyle string

const (
	IconMoving IconStyle = "moving"
	IconIdle   IconStyle = "idle"
	IconParked IconStyle = "parked"
)

type Marker struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   float64   `json:"heading"`
	Direction string    `json:"direction,omitempty"`
	IconStyle IconStyle `json:"iconStyle"`
	Cell      string    `json:"cell"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp *string   `json:"timestamp,omitempty"`

	headingReported bool
}

// IconFor picks the marker icon: parked with ignition off, moving when
// reporting a positive speed, idle otherwise.
func IconFor(v telemetry.Vehicle) IconStyle {
	if v.Status != telemetry.IgnitionOn {
		return IconParked
	}
	if v.Speed != nil && *v.Speed > 0 {
		return IconMoving
	}
	return IconIdle
}

func MarkerFor(v telemetry.Vehicle) Marker {
	m := Marker{
		ID:        v.ID,
		Name:      v.Name,
		Lat:       v.Lat,
		Lng:       v.Lng,
		IconStyle: IconFor(v),
		Cell:      geohash.EncodeWithPrecision(v.Lat, v.Lng, CellPrecision),
		Speed:     v.Speed,
		Timestamp: v.Timestamp,
	}
	if v.Heading != nil {
		m.Heading = *v.Heading
		m.Direction = Compass(*v.Heading)
		m.headingReported = true
	}
	return m
}

func MarkersFor(vehicles []telemetry.Vehicle) []Marker {
	out := make([]Marker, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, MarkerFor(v))
	}
	return out
}

// Shape is a zone as the map draws it.
type Shape struct {
	ID            string            `json:"id"`
	Name          string            `json:"name,omitempty"`
	Geometry      geofence.Geometry `json:"geometry"`
	Center        *geofence.LatLng  `json:"center,omitempty"`
	Radius        *float64          `json:"radius,omitempty"`
	Paths         []geofence.LatLng `json:"paths,omitempty"`
	FillColor     string            `json:"fillColor"`
	FillOpacity   float64           `json:"fillOpacity"`
	StrokeColor   string            `json:"strokeColor"`
	StrokeOpacity float64           `json:"strokeOpacity"`
}

func ShapeFor(z geofence.Zone) Shape {
	style := geofence.Style(z)
	s := Shape{
		ID:            z.ID,
		Name:          z.DisplayName,
		Geometry:      z.Geometry,
		FillColor:     style.FillColor,
		FillOpacity:   style.FillOpacity,
		StrokeColor:   style.StrokeColor,
		StrokeOpacity: style.StrokeOpacity,
	}
	switch z.Geometry {
	case geofence.GeometryCircle:
		s.Center = z.Center
		s.Radius = z.Radius
	case geofence.GeometryPolygon:
		s.Paths = z.Paths
	}
	return s
}

func ShapesFor(zones []geofence.Zone) []Shape {
	out := make([]Shape, 0, len(zones))
	for _, z := range zones {
		out = append(out, ShapeFor(z))
	}
	return out
}

// Trail is one vehicle's accumulated route as a Google encoded polyline.
type Trail struct {
	VehicleID string `json:"vehicleId"`
	Polyline  string `json:"polyline"`
	Points    int    `json:"points"`
}

func EncodePoints(points []telemetry.RoutePoint) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}

// TrailsFor encodes every route in the table, ordered by vehicle id.
func TrailsFor(routes *livetrack.RouteTable) []Trail {
	if routes == nil {
		return []Trail{}
	}
	ids := routes.VehicleIDs()
	sort.Strings(ids)

	out := make([]Trail, 0, len(ids))
	for _, id := range ids {
		points := routes.RouteFor(id)
		if len(points) == 0 {
			continue
		}
		out = append(out, Trail{
			VehicleID: id,
			Polyline:  EncodePoints(points),
			Points:    len(points),
		})
	}
	return out
}

// Frame is everything a map needs to redraw after one poll cycle.
type Frame struct {
	ViewID  string    `json:"viewId"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Markers []Marker  `json:"markers"`
	Trails  []Trail   `json:"trails"`
	Shapes  []Shape   `json:"shapes"`
}

// BuildFrame projects one update. Markers without a reported heading take
// the bearing of their trail's last leg.
func BuildFrame(u livetrack.Update, zones []geofence.Zone) Frame {
	markers := MarkersFor(u.Vehicles)
	if u.Routes != nil {
		for i := range markers {
			inferHeading(&markers[i], u.Routes.RouteFor(markers[i].ID))
		}
	}
	return Frame{
		ViewID:  u.ViewID,
		Seq:     u.Seq,
		At:      u.At,
		Markers: markers,
		Trails:  TrailsFor(u.Routes),
		Shapes:  ShapesFor(zones),
	}
}
