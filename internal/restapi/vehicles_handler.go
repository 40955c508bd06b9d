package restapi

import (
	"net/http"

	"fleetconsole.org/livemap/internal/livetrack"
	"fleetconsole.org/livemap/internal/mapsurface"
	"fleetconsole.org/livemap/internal/models"
	"fleetconsole.org/livemap/internal/telemetry"
	"fleetconsole.org/livemap/internal/utils"
)

// vehiclesHandler lists markers from the dashboard view's latest cycle.
// With no telemetry configured, or before the first cycle, the list is
// empty.
func (api *RestAPI) vehiclesHandler(w http.ResponseWriter, r *http.Request) {
	if api.Dashboard == nil {
		api.sendResponse(w, r, models.NewListResponse([]mapsurface.Marker{}))
		return
	}

	frame := mapsurface.BuildFrame(livetrack.Update{
		ViewID:   api.Dashboard.ID(),
		Seq:      api.Dashboard.Seq(),
		At:       api.Dashboard.UpdatedAt(),
		Vehicles: api.Dashboard.Vehicles(),
		Routes:   api.Dashboard.Routes(),
	}, nil)
	api.sendResponse(w, r, models.NewListResponse(frame.Markers))
}

// vehicleHandler returns the canonical record, passthrough fields included.
func (api *RestAPI) vehicleHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateVehicleID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}
	if api.Dashboard == nil {
		api.sendNotFound(w, r)
		return
	}

	vehicle, ok := api.Dashboard.Vehicle(id)
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(vehicle))
}

type routeEntry struct {
	VehicleID string                 `json:"vehicleId"`
	Points    []telemetry.RoutePoint `json:"points"`
	Polyline  string                 `json:"polyline"`
	Count     int                    `json:"count"`
	History   int                    `json:"history"`
}

// vehicleRouteHandler joins the history backend's stored trail with the
// live trail collected since the dashboard mounted. An unknown vehicle gets
// an empty route, not a 404.
func (api *RestAPI) vehicleRouteHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateVehicleID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}

	var history []telemetry.RoutePoint
	if api.History != nil {
		history = api.History.Route(r.Context(), id)
	}
	var live []telemetry.RoutePoint
	if api.Dashboard != nil {
		live = api.Dashboard.Routes().RouteFor(id)
	}

	points := joinRoutes(history, live)
	api.sendResponse(w, r, models.NewEntryResponse(routeEntry{
		VehicleID: id,
		Points:    points,
		Polyline:  mapsurface.EncodePoints(points),
		Count:     len(points),
		History:   len(history),
	}))
}

// joinRoutes appends live after history, collapsing the seam when the live
// trail starts where the history ends.
func joinRoutes(history, live []telemetry.RoutePoint) []telemetry.RoutePoint {
	out := make([]telemetry.RoutePoint, 0, len(history)+len(live))
	out = append(out, history...)
	for _, p := range live {
		if n := len(out); n > 0 && out[n-1].SamePlace(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
