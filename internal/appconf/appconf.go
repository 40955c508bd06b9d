package appconf

import (
	"strings"
	"time"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment maps the -env flag value onto an Environment.
// Unknown values fall back to Development.
func EnvFlagToEnvironment(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "test":
		return Test
	case "production", "prod":
		return Production
	default:
		return Development
	}
}

// Config holds all the configuration settings for the Application.
type Config struct {
	Port      int
	Env       Environment
	RateLimit int
	Verbose   bool

	// Telemetry backends. Any combination may be set; each configured backend
	// contributes its records to every poll cycle.
	SnapshotURL     string
	SnapshotKey     string
	BatchURL        string
	BatchVehicleNos []string
	GTFSRealtimeURL string
	RouteHistoryURL string

	PollInterval  time.Duration
	FetchTimeout  time.Duration
	StoreRefresh  time.Duration
	GeofenceDB    string
	AllowedOrigin string
}

// Defaults returns the configuration used when neither a file nor flags override a field.
func Defaults() Config {
	return Config{
		Port:          4000,
		Env:           Development,
		RateLimit:     100,
		SnapshotKey:   "live-vehicles",
		PollInterval:  5 * time.Second,
		FetchTimeout:  10 * time.Second,
		StoreRefresh:  time.Minute,
		GeofenceDB:    "fleetmap.db",
		AllowedOrigin: "*",
	}
}

func (c Config) HasTelemetrySource() bool {
	return c.SnapshotURL != "" || c.BatchURL != "" || c.GTFSRealtimeURL != ""
}
