package feed

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return logging.NewStructuredLogger(buf, slog.LevelDebug)
}

// requestLog remembers the URL of the last request a test server received.
type requestLog struct {
	mu  sync.Mutex
	url *url.URL
}

func (l *requestLog) record(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := *r.URL
	l.url = &u
}

func (l *requestLog) last() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.url == nil {
		return &url.URL{}
	}
	return l.url
}

func serveJSON(t *testing.T, status int, body string, seen *requestLog) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen.record(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSnapshotSource(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantLen int
	}{
		{"bare array", http.StatusOK, `[{"lat":1,"lng":2},{"lat":3,"lng":4}]`, 2},
		{"single object", http.StatusOK, `{"lat":1,"lng":2}`, 1},
		{"ok data envelope", http.StatusOK, `{"ok":true,"data":[{"lat":1,"lng":2}]}`, 1},
		{"double wrapped", http.StatusOK, `{"ok":true,"data":{"key":"live","value":"[{\"lat\":1,\"lng\":2}]"}}`, 1},
		{"unparsable inner value", http.StatusOK, `{"ok":true,"data":{"key":"live","value":"not json"}}`, 0},
		{"non json body", http.StatusOK, `<html>oops</html>`, 0},
		{"server error", http.StatusInternalServerError, `{"ok":false}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen requestLog
			server := serveJSON(t, tt.status, tt.body, &seen)
			var buf bytes.Buffer
			src := NewSnapshotSource(server.URL+"/kv/", "live-vehicles", time.Second, testLogger(&buf))

			records := src.Fetch(context.Background())

			require.NotNil(t, records)
			assert.Len(t, records, tt.wantLen)
			assert.Equal(t, "/kv/live-vehicles", seen.last().Path)
			if tt.wantLen == 0 {
				assert.Contains(t, buf.String(), "telemetry fetch failed")
			}
		})
	}
}

func TestSnapshotSourceYieldsDecodedCoordinates(t *testing.T) {
	server := serveJSON(t, http.StatusOK, `{"ok":true,"data":{"value":"[{\"lat\":1,\"lng\":2}]"}}`, nil)
	src := NewSnapshotSource(server.URL, "k", time.Second, nil)

	records := src.Fetch(context.Background())
	require.Len(t, records, 1)

	v, ok := telemetry.Normalize(records[0])
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Lat)
	assert.Equal(t, 2.0, v.Lng)
}

func TestSnapshotSourceUnreachable(t *testing.T) {
	server := serveJSON(t, http.StatusOK, `[]`, nil)
	server.Close()

	src := NewSnapshotSource(server.URL, "k", 200*time.Millisecond, nil)
	records := src.Fetch(context.Background())
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestBatchSource(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantLen int
	}{
		{"ok array", http.StatusOK, `{"ok":true,"data":[{"vehicleNo":"AB1","lat":1,"lng":2},{"vehicleNo":"CD2","lat":3,"lng":4}]}`, 2},
		{"not ok", http.StatusOK, `{"ok":false}`, 0},
		{"not ok with data", http.StatusOK, `{"ok":false,"data":[{"lat":1,"lng":2}]}`, 0},
		{"data not array", http.StatusOK, `{"ok":true,"data":{"lat":1,"lng":2}}`, 0},
		{"bare array", http.StatusOK, `[{"lat":1,"lng":2}]`, 0},
		{"non json", http.StatusOK, `garbage`, 0},
		{"http error", http.StatusBadGateway, `{"ok":true,"data":[]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen requestLog
			server := serveJSON(t, tt.status, tt.body, &seen)
			src := NewBatchSource(server.URL, []string{"AB1", "CD2"}, time.Second, nil)

			records := src.Fetch(context.Background())

			require.NotNil(t, records)
			assert.Len(t, records, tt.wantLen)
			assert.Equal(t, "/live-tracking/batch", seen.last().Path)
			assert.Equal(t, "AB1,CD2", seen.last().Query().Get("vehicleNos"))
		})
	}
}

func TestBatchSourceWithoutVehiclesSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	records := NewBatchSource(server.URL, nil, time.Second, nil).Fetch(context.Background())
	assert.Empty(t, records)
	assert.NotNil(t, records)
	assert.Equal(t, int32(0), calls.Load())
}

type staticSource struct {
	name    string
	records []telemetry.RawRecord
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Fetch(context.Context) []telemetry.RawRecord { return s.records }

func TestMultiKeepsSourceOrder(t *testing.T) {
	m := Multi{
		staticSource{name: "a", records: []telemetry.RawRecord{{"id": "a1"}, {"id": "a2"}}},
		staticSource{name: "empty", records: []telemetry.RawRecord{}},
		staticSource{name: "b", records: []telemetry.RawRecord{{"id": "b1"}}},
	}

	records := m.Fetch(context.Background())
	require.Len(t, records, 3)
	assert.Equal(t, "a1", records[0]["id"])
	assert.Equal(t, "a2", records[1]["id"])
	assert.Equal(t, "b1", records[2]["id"])

	assert.NotNil(t, Multi{}.Fetch(context.Background()))
}
