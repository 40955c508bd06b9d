package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	LogError(logger, "fetch failed", assert.AnError, slog.String("source", "batch"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "fetch failed", entry["msg"])
	assert.Equal(t, assert.AnError.Error(), entry["error"])
	assert.Equal(t, "batch", entry["source"])
}

func TestLogErrorIgnoresNil(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	LogError(logger, "nothing", nil)
	LogError(nil, "nothing", assert.AnError)

	assert.Empty(t, buf.String())
}

func TestLogOperationSkipsZeroDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	LogOperation(logger, "poll_cycle",
		slog.Duration("duration", 0),
		slog.Int("vehicles", 3))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "poll_cycle", entry["msg"])
	assert.EqualValues(t, 3, entry["vehicles"])
	_, hasDuration := entry["duration"]
	assert.False(t, hasDuration)

	buf.Reset()
	LogOperation(logger, "poll_cycle", slog.Duration("duration", time.Second))
	entry = decodeLine(t, &buf)
	assert.Contains(t, entry, "duration")
}

func TestLogDroppedRecordIsDebugOnly(t *testing.T) {
	var buf bytes.Buffer

	LogDroppedRecord(NewStructuredLogger(&buf, slog.LevelInfo), "zero_coordinates")
	assert.Empty(t, buf.String())

	LogDroppedRecord(NewStructuredLogger(&buf, slog.LevelDebug), "zero_coordinates", slog.String("id", "AB1"))
	entry := decodeLine(t, &buf)
	assert.Equal(t, "telemetry_record_dropped", entry["msg"])
	assert.Equal(t, "zero_coordinates", entry["reason"])
	assert.Equal(t, "AB1", entry["id"])
}

func TestLogHTTPRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	LogHTTPRequest(logger, "GET", "/api/vehicles", 200, 1.5)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/vehicles", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewStructuredLogger(&buf, slog.LevelInfo), "livetrack")
	logger.Info("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "livetrack", entry["component"])
	assert.NotNil(t, Component(nil, "x"))
}
