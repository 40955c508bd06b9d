package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/telemetry"
	"github.com/jamespfennell/gtfs"
)

// GTFSRealtimeSource reads a GTFS-realtime vehicle positions feed and
// re-expresses each vehicle as a raw record, so protobuf feeds flow through
// the same normalizer as the JSON backends.
type GTFSRealtimeSource struct {
	url        string
	headers    map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGTFSRealtimeSource(url string, headers map[string]string, timeout time.Duration, logger *slog.Logger) *GTFSRealtimeSource {
	return &GTFSRealtimeSource{
		url:        url,
		headers:    headers,
		httpClient: newHTTPClient(timeout),
		logger:     logging.Component(logger, "gtfs_realtime_source"),
	}
}

func (s *GTFSRealtimeSource) Name() string { return "gtfs-rt" }

func (s *GTFSRealtimeSource) Fetch(ctx context.Context) []telemetry.RawRecord {
	records, err := s.fetch(ctx)
	if err != nil {
		return degrade(s.logger, s.Name(), err)
	}
	return records
}

func (s *GTFSRealtimeSource) fetch(ctx context.Context) ([]telemetry.RawRecord, error) {
	body, err := getBody(ctx, s.httpClient, s.url, s.headers, s.logger)
	if err != nil {
		return nil, err
	}
	rt, err := gtfs.ParseRealtime(body, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, fmt.Errorf("parsing gtfs-rt feed: %w", err)
	}
	out := make([]telemetry.RawRecord, 0, len(rt.Vehicles))
	for i := range rt.Vehicles {
		if rec, ok := vehicleRecord(&rt.Vehicles[i]); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// vehicleRecord flattens a GTFS-RT vehicle into the loose record shape.
// Vehicles without a position are skipped here rather than left to the
// normalizer, since they can never produce a marker.
func vehicleRecord(v *gtfs.Vehicle) (telemetry.RawRecord, bool) {
	if v.Position == nil || v.Position.Latitude == nil || v.Position.Longitude == nil {
		return nil, false
	}
	rec := telemetry.RawRecord{
		"lat": float64(*v.Position.Latitude),
		"lng": float64(*v.Position.Longitude),
	}
	if v.Position.Bearing != nil {
		rec["heading"] = float64(*v.Position.Bearing)
	}
	if v.Position.Speed != nil {
		rec["speed"] = float64(*v.Position.Speed)
	}
	if v.Timestamp != nil {
		rec["timestamp"] = v.Timestamp.UTC().Format(time.RFC3339)
	}
	if v.ID != nil {
		if v.ID.ID != "" {
			rec["id"] = v.ID.ID
		}
		if v.ID.Label != "" {
			rec["name"] = v.ID.Label
		}
		if v.ID.LicensePlate != "" {
			rec["licensePlate"] = v.ID.LicensePlate
		}
	}
	if v.Trip != nil {
		if v.Trip.ID.ID != "" {
			rec["tripId"] = v.Trip.ID.ID
		}
		if v.Trip.ID.RouteID != "" {
			rec["routeId"] = v.Trip.ID.RouteID
		}
	}
	return rec, true
}
