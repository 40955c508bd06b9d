package telemetry

// RoutePoint is one stored position in a vehicle trail. Points are never
// modified after they are appended.
type RoutePoint struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Timestamp *string  `json:"timestamp,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
}

// SamePlace reports coordinate equality, the only criterion the route table
// uses to collapse repeats.
func (p RoutePoint) SamePlace(o RoutePoint) bool {
	return p.Lat == o.Lat && p.Lng == o.Lng
}

// Point projects a vehicle onto a trail point.
func (v Vehicle) Point() RoutePoint {
	return RoutePoint{
		Lat:       v.Lat,
		Lng:       v.Lng,
		Timestamp: v.Timestamp,
		Speed:     v.Speed,
		Heading:   v.Heading,
	}
}

// PointFrom reads a route point out of a loosely shaped history record using
// the same aliases as Normalize. Records without finite coordinates, or at
// (0,0), are rejected.
func PointFrom(raw RawRecord) (RoutePoint, bool) {
	lat, ok := LatitudeAliases.Number(raw)
	if !ok {
		return RoutePoint{}, false
	}
	lng, ok := LongitudeAliases.Number(raw)
	if !ok || (lat == 0 && lng == 0) {
		return RoutePoint{}, false
	}
	p := RoutePoint{Lat: lat, Lng: lng}
	if ts, ok := TimestampAliases.Text(raw); ok {
		p.Timestamp = &ts
	}
	if speed, ok := SpeedAliases.Number(raw); ok {
		p.Speed = &speed
	}
	if heading, ok := HeadingAliases.Number(raw); ok {
		p.Heading = &heading
	}
	return p, true
}
