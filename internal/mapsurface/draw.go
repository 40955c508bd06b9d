package mapsurface

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"fleetconsole.org/livemap/internal/geofence"
	"github.com/go-playground/validator/v10"
)

// DrawEvent is the draw-complete callback a map client sends when the user
// finishes a circle or polygon gesture.
type DrawEvent struct {
	Type           geofence.Geometry       `json:"type" validate:"required,oneof=circle polygon"`
	Center         *geofence.LatLng        `json:"center,omitempty"`
	Radius         *float64                `json:"radius,omitempty"`
	Paths          []geofence.LatLng       `json:"paths,omitempty" validate:"dive"`
	Color          string                  `json:"color" validate:"omitempty,hexcolor"`
	DisplayName    string                  `json:"displayName" validate:"max=120"`
	Classification geofence.Classification `json:"classification" validate:"max=60"`
}

// MinPolygonVertices is enforced here, at the editing layer. The store
// itself takes whatever it is given.
const MinPolygonVertices = 3

var drawValidator = newDrawValidator()

func newDrawValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns field errors keyed by JSON field name, empty when the
// gesture can become a zone.
func (e DrawEvent) Validate() map[string][]string {
	fieldErrors := make(map[string][]string)

	if err := drawValidator.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			fieldErrors["draw"] = append(fieldErrors["draw"], err.Error())
			return fieldErrors
		}
		for _, fe := range verrs {
			field := fieldPath(fe.Namespace())
			fieldErrors[field] = append(fieldErrors[field], fmt.Sprintf("failed %q validation", fe.Tag()))
		}
	}

	switch e.Type {
	case geofence.GeometryCircle:
		if e.Center == nil {
			fieldErrors["center"] = append(fieldErrors["center"], "circle requires a center")
		}
		if e.Radius == nil || *e.Radius <= 0 {
			fieldErrors["radius"] = append(fieldErrors["radius"], "circle requires a positive radius")
		}
	case geofence.GeometryPolygon:
		if len(e.Paths) < MinPolygonVertices {
			fieldErrors["paths"] = append(fieldErrors["paths"],
				fmt.Sprintf("polygon requires at least %d vertices", MinPolygonVertices))
		}
	}
	return fieldErrors
}

// fieldPath drops the struct name from a validator namespace:
// "DrawEvent.paths[1].lat" becomes "paths[1].lat".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// Zone materializes the gesture. Callers validate first.
func (e DrawEvent) Zone() geofence.Zone {
	var z geofence.Zone
	switch e.Type {
	case geofence.GeometryCircle:
		var center geofence.LatLng
		if e.Center != nil {
			center = *e.Center
		}
		var radius float64
		if e.Radius != nil {
			radius = *e.Radius
		}
		z = geofence.FromCircleDraw(center, radius, e.Color)
	default:
		z = geofence.FromPolygonDraw(e.Paths, e.Color)
	}
	z.DisplayName = strings.TrimSpace(e.DisplayName)
	z.Classification = geofence.Classification(strings.TrimSpace(string(e.Classification)))
	return z
}
