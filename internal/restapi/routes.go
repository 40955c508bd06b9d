package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// SetRoutes registers the JSON API and the live WebSocket on router. JSON
// responses are compressed; the WebSocket route is not.
func (api *RestAPI) SetRoutes(router *httprouter.Router) {
	router.NotFound = http.HandlerFunc(api.sendNotFound)
	router.MethodNotAllowed = http.HandlerFunc(api.methodNotAllowedResponse)

	router.Handler(http.MethodGet, "/api/health", CompressionMiddleware(http.HandlerFunc(api.healthHandler)))

	router.Handler(http.MethodGet, "/api/vehicles", CompressionMiddleware(http.HandlerFunc(api.vehiclesHandler)))
	router.Handler(http.MethodGet, "/api/vehicles/:id", CompressionMiddleware(http.HandlerFunc(api.vehicleHandler)))
	router.Handler(http.MethodGet, "/api/vehicles/:id/route", CompressionMiddleware(http.HandlerFunc(api.vehicleRouteHandler)))

	router.Handler(http.MethodGet, "/api/geofences", CompressionMiddleware(http.HandlerFunc(api.geofencesHandler)))
	router.Handler(http.MethodGet, "/api/geofences/:id", CompressionMiddleware(http.HandlerFunc(api.geofenceHandler)))
	router.Handler(http.MethodPost, "/api/geofences/circle", CompressionMiddleware(http.HandlerFunc(api.createCircleHandler)))
	router.Handler(http.MethodPost, "/api/geofences/polygon", CompressionMiddleware(http.HandlerFunc(api.createPolygonHandler)))
	router.Handler(http.MethodPut, "/api/geofences/:id", CompressionMiddleware(http.HandlerFunc(api.updateGeofenceHandler)))
	router.Handler(http.MethodDelete, "/api/geofences/:id", http.HandlerFunc(api.deleteGeofenceHandler))

	if api.Hub != nil {
		router.Handler(http.MethodGet, "/ws/live", api.Hub)
	}
}

// WithMiddleware wraps the router in request logging, security headers and
// per-client rate limiting, outermost first.
func (api *RestAPI) WithMiddleware(handler http.Handler) http.Handler {
	if api.rateLimiter != nil {
		handler = api.rateLimiter.Handler(handler)
	}
	handler = api.WithSecurityHeaders(handler)
	return NewRequestLoggingMiddleware(api.Logger)(handler)
}

// Handler builds a router with every API route and wraps it.
func (api *RestAPI) Handler() http.Handler {
	router := httprouter.New()
	api.SetRoutes(router)
	return api.WithMiddleware(router)
}

func (api *RestAPI) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	api.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
