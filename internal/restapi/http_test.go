package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fleetconsole.org/livemap/internal/app"
	"fleetconsole.org/livemap/internal/appconf"
	"fleetconsole.org/livemap/internal/geofence"
	"fleetconsole.org/livemap/internal/livetrack"
	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/mapsurface"
	"fleetconsole.org/livemap/internal/models"
	"fleetconsole.org/livemap/internal/telemetry"
	"github.com/stretchr/testify/require"
)

type fakeFleet struct {
	mu       sync.Mutex
	vehicles []telemetry.Vehicle
}

func (f *fakeFleet) fetch(context.Context) []telemetry.Vehicle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telemetry.Vehicle(nil), f.vehicles...)
}

type fakeHistory map[string][]telemetry.RoutePoint

func (h fakeHistory) Route(_ context.Context, id string) []telemetry.RoutePoint {
	return h[id]
}

func ptr[T any](v T) *T { return &v }

// createTestApi builds an API over an in-memory geofence store and a
// dashboard view fed by a fixed fleet. It waits for the first cycle.
func createTestApi(t *testing.T) *RestAPI {
	t.Helper()
	return createTestApiWith(t, io.Discard, nil)
}

func createTestApiWith(t *testing.T, logOutput io.Writer, configure func(*appconf.Config)) *RestAPI {
	t.Helper()

	fleet := &fakeFleet{vehicles: []telemetry.Vehicle{
		{ID: "KA01", Name: "Truck 1", Lat: 12.97, Lng: 77.59, Speed: ptr(30.0), Status: telemetry.IgnitionOn},
		{ID: "KA02", Name: "Truck 2", Lat: 13.01, Lng: 77.61, Status: telemetry.IgnitionOff,
			Extra: map[string]any{"driver": "Ravi"}},
		{ID: "MH 12 AB 1234", Name: "MH 12 AB 1234", Lat: 19.07, Lng: 72.87, Status: telemetry.IgnitionOn},
	}}

	cfg := appconf.Defaults()
	cfg.Env = appconf.Test
	cfg.RateLimit = -1
	if configure != nil {
		configure(&cfg)
	}
	logger := logging.NewStructuredLogger(logOutput, slog.LevelInfo)

	store, err := geofence.NewSQLiteStore(context.Background(), geofence.Config{DBPath: ":memory:", Env: appconf.Test}, nil)
	require.NoError(t, err)
	zones := geofence.NewCache(store, nil)

	tracker := livetrack.NewManager(livetrack.NewPoller(fleet.fetch, time.Hour, time.Second, nil), nil)
	dashboard, err := tracker.Mount(app.DashboardViewID, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return dashboard.Seq() > 0 }, 2*time.Second, 5*time.Millisecond)

	application := &app.Application{
		Config:    cfg,
		Logger:    logger,
		Tracker:   tracker,
		Dashboard: dashboard,
		Geofences: zones,
		History: fakeHistory{"KA01": {
			{Lat: 12.90, Lng: 77.50},
			{Lat: 12.97, Lng: 77.59},
		}},
	}

	application.Hub = mapsurface.NewHub(tracker, zones, zones.Create, cfg.AllowedOrigin, logger)

	api := NewRestAPI(application)
	t.Cleanup(func() {
		api.Close()
		application.Shutdown()
	})
	return api
}

func serveApi(t *testing.T, api *RestAPI) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path string, body interface{}) (*http.Response, models.ResponseModel) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer logging.SafeCloseWithLogging(resp.Body, nil, "http_response_body")

	var model models.ResponseModel
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&model))
	}
	return resp, model
}

func entryOf(t *testing.T, model models.ResponseModel) map[string]interface{} {
	t.Helper()
	data, ok := model.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	entry, ok := data["entry"].(map[string]interface{})
	require.True(t, ok, "data.entry should be an object")
	return entry
}

func listOf(t *testing.T, model models.ResponseModel) []interface{} {
	t.Helper()
	data, ok := model.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	list, ok := data["list"].([]interface{})
	require.True(t, ok, "data.list should be an array")
	return list
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
