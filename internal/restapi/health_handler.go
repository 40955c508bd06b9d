package restapi

import (
	"net/http"
	"time"

	"fleetconsole.org/livemap/internal/models"
)

type healthEntry struct {
	Status       string     `json:"status"`
	Environment  string     `json:"environment"`
	Views        int        `json:"views"`
	Clients      int        `json:"clients"`
	Zones        int        `json:"zones"`
	DashboardSeq uint64     `json:"dashboardSeq"`
	LastCycle    *time.Time `json:"lastCycle,omitempty"`
}

// healthHandler always answers 200; a dead backend shows up as a stale
// lastCycle, not as an error.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	entry := healthEntry{
		Status:      "ok",
		Environment: api.Config.Env.String(),
	}
	if api.Tracker != nil {
		entry.Views = len(api.Tracker.Views())
	}
	if api.Hub != nil {
		entry.Clients = api.Hub.Clients()
	}
	if api.Geofences != nil {
		entry.Zones = len(api.Geofences.List())
	}
	if api.Dashboard != nil {
		entry.DashboardSeq = api.Dashboard.Seq()
		if at := api.Dashboard.UpdatedAt(); !at.IsZero() {
			entry.LastCycle = &at
		}
	}

	api.sendResponse(w, r, models.NewEntryResponse(entry))
}
