package restapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"fleetconsole.org/livemap/internal/geofence"
	"fleetconsole.org/livemap/internal/mapsurface"
	"fleetconsole.org/livemap/internal/models"
	"fleetconsole.org/livemap/internal/utils"
	"github.com/go-playground/validator/v10"
)

var editValidator = newEditValidator()

func newEditValidator() *validator.Validate {
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

type zoneEntry struct {
	geofence.Zone
	Style geofence.RenderStyle `json:"style"`
}

func entryFor(z geofence.Zone) zoneEntry {
	return zoneEntry{Zone: z, Style: geofence.Style(z)}
}

func entriesFor(zones []geofence.Zone) []zoneEntry {
	out := make([]zoneEntry, 0, len(zones))
	for _, z := range zones {
		out = append(out, entryFor(z))
	}
	return out
}

// geofencesHandler lists zones. With lat and lng it lists only the zones
// containing that point.
func (api *RestAPI) geofencesHandler(w http.ResponseWriter, r *http.Request) {
	if api.Geofences == nil {
		api.sendResponse(w, r, models.NewListResponse([]zoneEntry{}))
		return
	}

	query := r.URL.Query()
	if query.Get("lat") == "" && query.Get("lng") == "" {
		api.sendResponse(w, r, models.NewListResponse(entriesFor(api.Geofences.List())))
		return
	}

	lat, fieldErrors := utils.RequireFloatParam(query, "lat", nil)
	lng, fieldErrors := utils.RequireFloatParam(query, "lng", fieldErrors)
	if len(fieldErrors) == 0 {
		fieldErrors = utils.ValidatePoint(lat, lng, fieldErrors)
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}
	api.sendResponse(w, r, models.NewListResponse(entriesFor(api.Geofences.Containing(lat, lng))))
}

func (api *RestAPI) geofenceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := api.geofenceID(w, r)
	if !ok {
		return
	}
	zone, found := api.Geofences.Get(id)
	if !found {
		api.sendNotFound(w, r)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(entryFor(zone)))
}

func (api *RestAPI) geofenceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return "", false
	}
	if api.Geofences == nil {
		api.sendNotFound(w, r)
		return "", false
	}
	return id, true
}

func (api *RestAPI) createCircleHandler(w http.ResponseWriter, r *http.Request) {
	api.createFromDraw(w, r, geofence.GeometryCircle)
}

func (api *RestAPI) createPolygonHandler(w http.ResponseWriter, r *http.Request) {
	api.createFromDraw(w, r, geofence.GeometryPolygon)
}

// createFromDraw takes a completed draw gesture. This is where degenerate
// shapes are turned away; the store accepts anything.
func (api *RestAPI) createFromDraw(w http.ResponseWriter, r *http.Request, geometry geofence.Geometry) {
	if api.Geofences == nil {
		api.errorResponse(w, r, http.StatusServiceUnavailable, "geofence store unavailable")
		return
	}

	var event mapsurface.DrawEvent
	if err := readJSON(w, r, &event); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"body": {err.Error()}})
		return
	}
	event.Type = geometry
	event.DisplayName = utils.SanitizeInput(event.DisplayName)
	event.Classification = geofence.Classification(utils.SanitizeInput(string(event.Classification)))

	if fieldErrors := event.Validate(); len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	zone, err := api.Geofences.Create(r.Context(), event.Zone())
	if errors.Is(err, geofence.ErrExists) {
		api.conflictResponse(w, r, "geofence already exists")
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendCreated(w, r, entryFor(zone))
}

// zoneEdit is a partial update. Geometry cannot change; the position
// fields must match the zone's geometry.
type zoneEdit struct {
	Code           *string           `json:"code" validate:"omitempty,max=40"`
	DisplayName    *string           `json:"displayName" validate:"omitempty,max=120"`
	Classification *string           `json:"classification" validate:"omitempty,max=60"`
	Status         *geofence.Status  `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Color          *string           `json:"color" validate:"omitempty,hexcolor"`
	Center         *geofence.LatLng  `json:"center"`
	Radius         *float64          `json:"radius" validate:"omitempty,gt=0"`
	Paths          []geofence.LatLng `json:"paths" validate:"omitempty,min=3,dive"`
}

func (e zoneEdit) validate(zone geofence.Zone) map[string][]string {
	fieldErrors := make(map[string][]string)
	if err := editValidator.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				field := fe.Field()
				if i := strings.Index(fe.Namespace(), "."); i >= 0 {
					field = fe.Namespace()[i+1:]
				}
				fieldErrors[field] = append(fieldErrors[field], "failed \""+fe.Tag()+"\" validation")
			}
		} else {
			fieldErrors["body"] = append(fieldErrors["body"], err.Error())
		}
	}

	if zone.Geometry != geofence.GeometryCircle && (e.Center != nil || e.Radius != nil) {
		fieldErrors["geometry"] = append(fieldErrors["geometry"], "center and radius only apply to circles")
	}
	if zone.Geometry != geofence.GeometryPolygon && e.Paths != nil {
		fieldErrors["geometry"] = append(fieldErrors["geometry"], "paths only apply to polygons")
	}
	if e.Paths != nil && len(e.Paths) < mapsurface.MinPolygonVertices {
		fieldErrors["paths"] = append(fieldErrors["paths"], "polygon requires at least 3 vertices")
	}
	return fieldErrors
}

func (e zoneEdit) apply(zone geofence.Zone) geofence.Zone {
	if e.Code != nil {
		zone.Code = utils.SanitizeInput(*e.Code)
	}
	if e.DisplayName != nil {
		zone.DisplayName = utils.SanitizeInput(*e.DisplayName)
	}
	if e.Classification != nil {
		zone.Classification = geofence.Classification(utils.SanitizeInput(*e.Classification))
	}
	if e.Status != nil {
		zone.Status = *e.Status
	}
	if e.Color != nil {
		zone.Color = *e.Color
	}
	if e.Center != nil {
		c := *e.Center
		zone.Center = &c
	}
	if e.Radius != nil {
		r := *e.Radius
		zone.Radius = &r
	}
	if e.Paths != nil {
		zone.Paths = append([]geofence.LatLng{}, e.Paths...)
	}
	return zone
}

func (api *RestAPI) updateGeofenceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := api.geofenceID(w, r)
	if !ok {
		return
	}
	zone, found := api.Geofences.Get(id)
	if !found {
		api.sendNotFound(w, r)
		return
	}

	var edit zoneEdit
	if err := readJSON(w, r, &edit); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"body": {err.Error()}})
		return
	}
	if fieldErrors := edit.validate(zone); len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	updated, err := api.Geofences.Update(r.Context(), edit.apply(zone))
	if errors.Is(err, geofence.ErrNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(entryFor(updated)))
}

func (api *RestAPI) deleteGeofenceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := api.geofenceID(w, r)
	if !ok {
		return
	}
	err := api.Geofences.Delete(r.Context(), id)
	if errors.Is(err, geofence.ErrNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendNoContent(w)
}
