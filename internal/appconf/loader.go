package appconf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type ServerFile struct {
	Port      int    `yaml:"port" validate:"omitempty,gt=0,lt=65536"`
	Env       string `yaml:"env" validate:"omitempty,oneof=development test production prod"`
	RateLimit *int   `yaml:"rateLimit"` // 0 blocks every request, negative disables limiting
	Origin    string `yaml:"allowedOrigin"`
}

type TelemetryFile struct {
	SnapshotURL     string   `yaml:"snapshotURL" validate:"omitempty,url"`
	SnapshotKey     string   `yaml:"snapshotKey"`
	BatchURL        string   `yaml:"batchURL" validate:"omitempty,url"`
	VehicleNos      []string `yaml:"vehicleNos" validate:"dive,required"`
	GTFSRealtimeURL string   `yaml:"gtfsRealtimeURL" validate:"omitempty,url"`
	RouteHistoryURL string   `yaml:"routeHistoryURL" validate:"omitempty,url"`
	PollIntervalMS  int      `yaml:"pollIntervalMS" validate:"omitempty,gte=250"`
	TimeoutMS       int      `yaml:"timeoutMS" validate:"gte=0"`
}

type GeofenceFile struct {
	Database  string `yaml:"database"`
	RefreshMS int    `yaml:"refreshMS" validate:"gte=0"`
}

// File is the on-disk YAML layout.
type File struct {
	Server    ServerFile    `yaml:"server"`
	Telemetry TelemetryFile `yaml:"telemetry"`
	Geofences GeofenceFile  `yaml:"geofences"`
}

// LoadFile reads and validates a YAML config file and overlays it on base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, base)
}

// Parse decodes YAML bytes; zero values in the file leave base untouched.
func Parse(data []byte, base Config) (Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("decoding config: %w", err)
	}
	v := validator.New()
	if err := v.Struct(f); err != nil {
		return base, fmt.Errorf("invalid config: %w", err)
	}

	cfg := base
	if f.Server.Port != 0 {
		cfg.Port = f.Server.Port
	}
	if f.Server.Env != "" {
		cfg.Env = EnvFlagToEnvironment(f.Server.Env)
	}
	if f.Server.RateLimit != nil {
		cfg.RateLimit = *f.Server.RateLimit
	}
	if f.Server.Origin != "" {
		cfg.AllowedOrigin = f.Server.Origin
	}

	t := f.Telemetry
	if t.SnapshotURL != "" {
		cfg.SnapshotURL = t.SnapshotURL
	}
	if t.SnapshotKey != "" {
		cfg.SnapshotKey = t.SnapshotKey
	}
	if t.BatchURL != "" {
		cfg.BatchURL = t.BatchURL
	}
	if len(t.VehicleNos) > 0 {
		cfg.BatchVehicleNos = trimAll(t.VehicleNos)
	}
	if t.GTFSRealtimeURL != "" {
		cfg.GTFSRealtimeURL = t.GTFSRealtimeURL
	}
	if t.RouteHistoryURL != "" {
		cfg.RouteHistoryURL = t.RouteHistoryURL
	}
	if t.PollIntervalMS > 0 {
		cfg.PollInterval = time.Duration(t.PollIntervalMS) * time.Millisecond
	}
	if t.TimeoutMS > 0 {
		cfg.FetchTimeout = time.Duration(t.TimeoutMS) * time.Millisecond
	}

	if f.Geofences.Database != "" {
		cfg.GeofenceDB = f.Geofences.Database
	}
	if f.Geofences.RefreshMS > 0 {
		cfg.StoreRefresh = time.Duration(f.Geofences.RefreshMS) * time.Millisecond
	}
	return cfg, nil
}

// SplitList splits a comma separated flag value, dropping blanks.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return trimAll(strings.Split(s, ","))
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
