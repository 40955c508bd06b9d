package restapi

import (
	"log/slog"
	"time"

	"fleetconsole.org/livemap/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

// NewRestAPI creates a new RestAPI instance with initialized rate limiter
func NewRestAPI(app *app.Application) *RestAPI {
	if app.Logger == nil {
		app.Logger = slog.Default()
	}
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimiter(app.Config.RateLimit, time.Second),
	}
}

// Close releases the rate limiter's background cleanup.
func (api *RestAPI) Close() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
