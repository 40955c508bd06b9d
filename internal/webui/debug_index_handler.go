package webui

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"fleetconsole.org/livemap/internal/telemetry"
	"github.com/davecgh/go-spew/spew"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

type debugData struct {
	Title string
	Pre   string
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{
		Title: title,
		Pre:   dumper.Sdump(data),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type viewSummary struct {
	ID        string
	MountedAt time.Time
	UpdatedAt time.Time
	Seq       uint64
	Stale     uint64
	Vehicles  int
	Trails    int
	Points    int
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	dataType := r.URL.Query().Get("dataType")

	var data interface{}
	var title string

	switch dataType {
	case "views":
		var views []viewSummary
		if webUI.Tracker != nil {
			for _, v := range webUI.Tracker.Views() {
				views = append(views, viewSummary{
					ID:        v.ID(),
					MountedAt: v.MountedAt(),
					UpdatedAt: v.UpdatedAt(),
					Seq:       v.Seq(),
					Stale:     v.Stale(),
					Vehicles:  len(v.Vehicles()),
					Trails:    len(v.Routes().VehicleIDs()),
					Points:    v.Routes().Points(),
				})
			}
		}
		data = views
		title = "Live views"
	case "dashboard":
		var vehicles []telemetry.Vehicle
		if webUI.Dashboard != nil {
			vehicles = webUI.Dashboard.Vehicles()
		}
		data = vehicles
		title = "Dashboard - Vehicles"
	case "routes":
		routes := map[string][]telemetry.RoutePoint{}
		if webUI.Dashboard != nil {
			for _, id := range webUI.Dashboard.Routes().VehicleIDs() {
				routes[id] = webUI.Dashboard.Routes().RouteFor(id)
			}
		}
		data = routes
		title = "Dashboard - Route table"
	case "geofences":
		if webUI.Geofences != nil {
			data = webUI.Geofences.List()
		}
		title = "Geofences"
	case "config":
		data = webUI.Config
		title = "Configuration"
	default:
		data = map[string]string{
			"error": "Please use one of the following: views, dashboard, routes, geofences, config.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}
