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

// SnapshotSource reads one opaque value by key from a key/value snapshot
// store: GET <baseURL>/<key>. The value may arrive bare, inside an
// {ok,data} envelope, inside a {key,value} envelope, or both.
type SnapshotSource struct {
	baseURL    string
	key        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSnapshotSource(baseURL, key string, timeout time.Duration, logger *slog.Logger) *SnapshotSource {
	return &SnapshotSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		key:        key,
		httpClient: newHTTPClient(timeout),
		logger:     logging.Component(logger, "snapshot_source"),
	}
}

func (s *SnapshotSource) Name() string { return "snapshot:" + s.key }

func (s *SnapshotSource) Fetch(ctx context.Context) []telemetry.RawRecord {
	records, err := s.fetch(ctx)
	if err != nil {
		return degrade(s.logger, s.Name(), err)
	}
	return records
}

func (s *SnapshotSource) fetch(ctx context.Context) ([]telemetry.RawRecord, error) {
	body, err := getJSON(ctx, s.httpClient, s.baseURL+"/"+url.PathEscape(s.key), s.logger)
	if err != nil {
		return nil, err
	}
	payload, err := Unwrap(body)
	if err != nil {
		return nil, err
	}
	return Records(payload), nil
}
