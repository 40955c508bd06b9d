package webui

import (
	"net/http"

	"fleetconsole.org/livemap/internal/app"
	"fleetconsole.org/livemap/internal/appconf"
	"github.com/julienschmidt/httprouter"
)

type WebUI struct {
	*app.Application
}

// SetWebUIRoutes mounts the state dump outside production.
func (webUI *WebUI) SetWebUIRoutes(router *httprouter.Router) {
	if webUI.Config.Env == appconf.Production {
		return
	}
	router.HandlerFunc(http.MethodGet, "/debug/state", webUI.debugIndexHandler)
}
