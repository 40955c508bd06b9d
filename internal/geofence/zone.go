package geofence

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

type Geometry string

const (
	GeometryCircle  Geometry = "circle"
	GeometryPolygon Geometry = "polygon"
)

type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Classification is free-form; the constants are the ones the console offers.
type Classification string

const (
	ClassWarehouse      Classification = "Warehouse"
	ClassPort           Classification = "Port"
	ClassClientSite     Classification = "Client Site"
	ClassDepot          Classification = "Depot"
	ClassRestrictedArea Classification = "Restricted Area"
)

var KnownClassifications = []Classification{
	ClassWarehouse,
	ClassPort,
	ClassClientSite,
	ClassDepot,
	ClassRestrictedArea,
}

type LatLng struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

func (p LatLng) point() orb.Point { return orb.Point{p.Lng, p.Lat} }

// Zone is a circle or polygon region. Geometry decides which of
// Center/Radius or Paths is meaningful.
type Zone struct {
	ID             string         `json:"id"`
	Code           string         `json:"code"`
	DisplayName    string         `json:"displayName"`
	Classification Classification `json:"classification"`
	Geometry       Geometry       `json:"geometry"`
	Center         *LatLng        `json:"center,omitempty"`
	Radius         *float64       `json:"radius,omitempty"`
	Paths          []LatLng       `json:"paths,omitempty"`
	Status         Status         `json:"status"`
	Color          string         `json:"color"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// FromCircleDraw materializes a completed circle gesture. Nothing about the
// geometry is checked here.
func FromCircleDraw(center LatLng, radius float64, color string) Zone {
	c := center
	r := radius
	z := newDrawnZone(GeometryCircle, color)
	z.Center = &c
	z.Radius = &r
	return z
}

// FromPolygonDraw materializes a completed polygon gesture, keeping the
// vertices in drawing order.
func FromPolygonDraw(paths []LatLng, color string) Zone {
	z := newDrawnZone(GeometryPolygon, color)
	z.Paths = append([]LatLng{}, paths...)
	return z
}

func newDrawnZone(geometry Geometry, color string) Zone {
	id := uuid.NewString()
	return Zone{
		ID:       id,
		Code:     "GF-" + strings.ToUpper(id[:8]),
		Geometry: geometry,
		Status:   StatusEnabled,
		Color:    color,
	}
}

func (z Zone) Enabled() bool { return z.Status != StatusDisabled }

// Bound is the lng/lat box around the zone. Zones without usable geometry
// return an empty bound at the origin.
func (z Zone) Bound() orb.Bound {
	switch z.Geometry {
	case GeometryCircle:
		if z.Center == nil || z.Radius == nil {
			return orb.Bound{}
		}
		return geo.NewBoundAroundPoint(z.Center.point(), *z.Radius)
	case GeometryPolygon:
		if len(z.Paths) == 0 {
			return orb.Bound{}
		}
		return z.ring().Bound()
	}
	return orb.Bound{}
}

// Contains reports whether the point falls inside the zone. Circles use
// great-circle distance in meters; polygons use a planar ring test on
// lng/lat, which is fine at geofence scale.
func (z Zone) Contains(lat, lng float64) bool {
	p := orb.Point{lng, lat}
	switch z.Geometry {
	case GeometryCircle:
		if z.Center == nil || z.Radius == nil {
			return false
		}
		return geo.DistanceHaversine(z.Center.point(), p) <= *z.Radius
	case GeometryPolygon:
		if len(z.Paths) < 3 {
			return false
		}
		return planar.RingContains(z.ring(), p)
	}
	return false
}

func (z Zone) ring() orb.Ring {
	ring := make(orb.Ring, 0, len(z.Paths)+1)
	for _, p := range z.Paths {
		ring = append(ring, p.point())
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

const (
	FillOpacity           = 0.15
	StrokeOpacityEnabled  = 1.0
	StrokeOpacityDisabled = 0.4
)

// RenderStyle is how the map draws a zone. Stroke opacity is the only
// visible difference between an enabled and a disabled zone.
type RenderStyle struct {
	FillColor     string  `json:"fillColor"`
	FillOpacity   float64 `json:"fillOpacity"`
	StrokeColor   string  `json:"strokeColor"`
	StrokeOpacity float64 `json:"strokeOpacity"`
}

func Style(z Zone) RenderStyle {
	stroke := StrokeOpacityEnabled
	if !z.Enabled() {
		stroke = StrokeOpacityDisabled
	}
	return RenderStyle{
		FillColor:     z.Color,
		FillOpacity:   FillOpacity,
		StrokeColor:   z.Color,
		StrokeOpacity: stroke,
	}
}
