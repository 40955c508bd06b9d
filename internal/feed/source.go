package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/telemetry"
)

// Source fetches one cycle of raw telemetry. Implementations never fail:
// every error is logged and turns into an empty, non-nil slice.
type Source interface {
	Name() string
	Fetch(ctx context.Context) []telemetry.RawRecord
}

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 32 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func getBody(ctx context.Context, client *http.Client, url string, headers map[string]string, logger *slog.Logger) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Add(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(resp.Body, logger, "http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected http status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func getJSON(ctx context.Context, client *http.Client, url string, logger *slog.Logger) (any, error) {
	body, err := getBody(ctx, client, url, map[string]string{"Accept": "application/json"}, logger)
	if err != nil {
		return nil, err
	}
	v, err := decodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return v, nil
}

// degrade logs a fetch failure and returns the empty result sources hand back.
func degrade(logger *slog.Logger, source string, err error) []telemetry.RawRecord {
	logging.LogError(logger, "telemetry fetch failed", err, slog.String("source", source))
	return []telemetry.RawRecord{}
}

// Multi fans out to several sources in parallel and concatenates their
// records in source order.
type Multi []Source

func (m Multi) Name() string { return "multi" }

func (m Multi) Fetch(ctx context.Context) []telemetry.RawRecord {
	results := make([][]telemetry.RawRecord, len(m))
	var wg sync.WaitGroup
	for i, src := range m {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = src.Fetch(ctx)
		}(i, src)
	}
	wg.Wait()

	out := []telemetry.RawRecord{}
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out
}
