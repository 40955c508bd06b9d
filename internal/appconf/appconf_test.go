package appconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFlagToEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"test", Test},
		{"TEST", Test},
		{"production", Production},
		{"prod", Production},
		{"development", Development},
		{"", Development},
		{"staging", Development},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EnvFlagToEnvironment(tt.in))
		})
	}
}

func TestParseOverlaysFileOnDefaults(t *testing.T) {
	data := []byte(`
server:
  port: 8088
  env: test
telemetry:
  batchURL: http://tracking.local
  vehicleNos: [" AB1 ", "CD2"]
  pollIntervalMS: 2000
geofences:
  database: ":memory:"
`)
	cfg, err := Parse(data, Defaults())
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Port)
	assert.Equal(t, Test, cfg.Env)
	assert.Equal(t, "http://tracking.local", cfg.BatchURL)
	assert.Equal(t, []string{"AB1", "CD2"}, cfg.BatchVehicleNos)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, ":memory:", cfg.GeofenceDB)
	// untouched fields keep their defaults
	assert.Equal(t, "live-vehicles", cfg.SnapshotKey)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.HasTelemetrySource())
}

func TestParseRejectsInvalidValues(t *testing.T) {
	t.Run("bad url", func(t *testing.T) {
		_, err := Parse([]byte("telemetry:\n  batchURL: not a url\n"), Defaults())
		assert.Error(t, err)
	})
	t.Run("poll interval too small", func(t *testing.T) {
		_, err := Parse([]byte("telemetry:\n  pollIntervalMS: 10\n"), Defaults())
		assert.Error(t, err)
	})
	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("server: [1, 2"), Defaults())
		assert.Error(t, err)
	})
}

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want int
	}{
		{name: "absent keeps default", yaml: "server:\n  port: 8080\n", want: Defaults().RateLimit},
		{name: "positive", yaml: "server:\n  rateLimit: 25\n", want: 25},
		{name: "negative disables limiting", yaml: "server:\n  rateLimit: -1\n", want: -1},
		{name: "zero blocks everything", yaml: "server:\n  rateLimit: 0\n", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml), Defaults())
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.RateLimit)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetmap.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	cfg, err := LoadFile(path, Defaults())
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"), Defaults())
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"a", "b"}, SplitList("a, ,b,"))
}
