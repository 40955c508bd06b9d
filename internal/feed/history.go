package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/telemetry"
)

// RouteHistoryClient reads stored trails from GET <baseURL>/vehicles/{id}/route.
type RouteHistoryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewRouteHistoryClient(baseURL string, timeout time.Duration, logger *slog.Logger) *RouteHistoryClient {
	return &RouteHistoryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
		logger:     logging.Component(logger, "route_history"),
	}
}

// Route returns the stored trail for a vehicle in backend order. Failures and
// unusable points degrade to fewer (possibly zero) points.
func (c *RouteHistoryClient) Route(ctx context.Context, vehicleID string) []telemetry.RoutePoint {
	body, err := getJSON(ctx, c.httpClient, c.baseURL+"/vehicles/"+url.PathEscape(vehicleID)+"/route", c.logger)
	if err != nil {
		logging.LogError(c.logger, "route history fetch failed", err, slog.String("vehicle_id", vehicleID))
		return []telemetry.RoutePoint{}
	}
	payload, err := Unwrap(body)
	if err != nil {
		logging.LogError(c.logger, "route history unwrap failed", err, slog.String("vehicle_id", vehicleID))
		return []telemetry.RoutePoint{}
	}

	records := Records(payload)
	points := make([]telemetry.RoutePoint, 0, len(records))
	for _, raw := range records {
		if p, ok := telemetry.PointFrom(raw); ok {
			points = append(points, p)
		}
	}
	return points
}
