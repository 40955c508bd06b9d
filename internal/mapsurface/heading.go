package mapsurface

import (
	"math"

	"fleetconsole.org/livemap/internal/telemetry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// BearingBetween is the initial great-circle bearing from a to b in
// degrees clockwise from north, in [0, 360).
func BearingBetween(a, b telemetry.RoutePoint) float64 {
	bearing := geo.Bearing(orb.Point{a.Lng, a.Lat}, orb.Point{b.Lng, b.Lat})
	return math.Mod(bearing+360, 360)
}

// Compass maps a bearing onto the eight-point compass rose.
func Compass(bearing float64) string {
	bearing = math.Mod(math.Mod(bearing, 360)+360, 360)
	return compassPoints[int((bearing+22.5)/45.0)%8]
}

// inferHeading fills a missing heading from the last leg of the trail.
// Vehicles that report a heading, or whose trail has one point, are left
// alone.
func inferHeading(m *Marker, trail []telemetry.RoutePoint) {
	if m.headingReported || len(trail) < 2 {
		return
	}
	m.Heading = BearingBetween(trail[len(trail)-2], trail[len(trail)-1])
	m.Direction = Compass(m.Heading)
}
