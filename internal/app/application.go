package app

import (
	"context"
	"log/slog"

	"fleetconsole.org/livemap/internal/appconf"
	"fleetconsole.org/livemap/internal/geofence"
	"fleetconsole.org/livemap/internal/livetrack"
	"fleetconsole.org/livemap/internal/mapsurface"
	"fleetconsole.org/livemap/internal/telemetry"
)

// DashboardViewID is the view the server keeps mounted for REST reads.
const DashboardViewID = "dashboard"

// RouteHistory serves stored trails for one vehicle. Implementations
// degrade to an empty slice on failure.
type RouteHistory interface {
	Route(ctx context.Context, vehicleID string) []telemetry.RoutePoint
}

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config    appconf.Config
	Logger    *slog.Logger
	Tracker   *livetrack.Manager
	Dashboard *livetrack.View
	Geofences *geofence.Cache
	History   RouteHistory
	Hub       *mapsurface.Hub
}

// Shutdown stops live views before the geofence store closes. Nil
// components are skipped.
func (app *Application) Shutdown() {
	if app.Hub != nil {
		app.Hub.Shutdown()
	}
	if app.Tracker != nil {
		app.Tracker.Shutdown()
	}
	if app.Geofences != nil {
		app.Geofences.Shutdown()
	}
}
