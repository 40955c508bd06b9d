package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/telemetry"
)

var errBatchShape = errors.New("batch response is not {ok:true, data:[...]}")

// BatchSource asks a tracking backend for an explicit list of vehicles in a
// single call: GET <baseURL>/live-tracking/batch?vehicleNos=a,b,c.
type BatchSource struct {
	baseURL    string
	vehicleNos []string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewBatchSource(baseURL string, vehicleNos []string, timeout time.Duration, logger *slog.Logger) *BatchSource {
	return &BatchSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		vehicleNos: append([]string(nil), vehicleNos...),
		httpClient: newHTTPClient(timeout),
		logger:     logging.Component(logger, "batch_source"),
	}
}

func (s *BatchSource) Name() string { return "batch" }

func (s *BatchSource) Fetch(ctx context.Context) []telemetry.RawRecord {
	if len(s.vehicleNos) == 0 {
		return []telemetry.RawRecord{}
	}
	records, err := s.fetch(ctx)
	if err != nil {
		return degrade(s.logger, s.Name(), err)
	}
	return records
}

func (s *BatchSource) requestURL() string {
	q := url.Values{}
	q.Set("vehicleNos", strings.Join(s.vehicleNos, ","))
	return s.baseURL + "/live-tracking/batch?" + q.Encode()
}

func (s *BatchSource) fetch(ctx context.Context) ([]telemetry.RawRecord, error) {
	body, err := getJSON(ctx, s.httpClient, s.requestURL(), s.logger)
	if err != nil {
		return nil, err
	}
	env := Classify(body)
	if env.Kind != OkDataEnvelope {
		return nil, errBatchShape
	}
	if !env.OK {
		return nil, ErrNotOK
	}
	if _, isArray := env.Payload.([]any); !isArray {
		return nil, errBatchShape
	}
	return Records(env.Payload), nil
}
