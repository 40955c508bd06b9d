package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetconsole.org/livemap/internal/app"
	"fleetconsole.org/livemap/internal/appconf"
	"fleetconsole.org/livemap/internal/feed"
	"fleetconsole.org/livemap/internal/geofence"
	"fleetconsole.org/livemap/internal/livetrack"
	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/mapsurface"
	"fleetconsole.org/livemap/internal/restapi"
	"fleetconsole.org/livemap/internal/telemetry"
	"fleetconsole.org/livemap/internal/webui"
	"github.com/julienschmidt/httprouter"
)

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewStructuredLogger(os.Stdout, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logging.LogError(logger, "server stopped", err)
		os.Exit(1)
	}
}

// parseConfig layers defaults, the optional YAML file and explicitly set
// flags, in that order.
func parseConfig(args []string, output io.Writer) (appconf.Config, error) {
	cfg := appconf.Defaults()

	fs := flag.NewFlagSet("livemap", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		configPath string
		env        string
		vehicleNos string
	)
	fs.StringVar(&configPath, "config", "", "Path to a YAML config file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "API server port")
	fs.StringVar(&env, "env", cfg.Env.String(), "Environment (development|test|production)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Requests per second per client; negative disables")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Log dropped telemetry records and other debug output")
	fs.StringVar(&cfg.SnapshotURL, "snapshot-url", cfg.SnapshotURL, "Base URL of the key/value snapshot store")
	fs.StringVar(&cfg.SnapshotKey, "snapshot-key", cfg.SnapshotKey, "Key holding the live vehicle snapshot")
	fs.StringVar(&cfg.BatchURL, "batch-url", cfg.BatchURL, "Base URL of the live tracking batch API")
	fs.StringVar(&vehicleNos, "vehicle-nos", "", "Comma separated vehicle numbers for the batch API")
	fs.StringVar(&cfg.GTFSRealtimeURL, "gtfs-rt-url", cfg.GTFSRealtimeURL, "GTFS-realtime vehicle positions URL")
	fs.StringVar(&cfg.RouteHistoryURL, "history-url", cfg.RouteHistoryURL, "Base URL of the route history backend")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Live polling interval")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Timeout for one poll cycle")
	fs.DurationVar(&cfg.StoreRefresh, "geofence-refresh", cfg.StoreRefresh, "Geofence cache refresh interval")
	fs.StringVar(&cfg.GeofenceDB, "geofence-db", cfg.GeofenceDB, "SQLite database file for geofences; empty for in-memory")
	fs.StringVar(&cfg.AllowedOrigin, "allowed-origin", cfg.AllowedOrigin, "CORS and WebSocket allowed origin")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if configPath != "" {
		fromFile, err := appconf.LoadFile(configPath, appconf.Defaults())
		if err != nil {
			return cfg, err
		}
		flagged := cfg
		cfg = fromFile
		fs.Visit(func(f *flag.Flag) {
			overrideFromFlag(&cfg, flagged, f.Name)
		})
	}

	if isSet(fs, "env") || configPath == "" {
		cfg.Env = appconf.EnvFlagToEnvironment(env)
	}
	if vehicleNos != "" {
		cfg.BatchVehicleNos = appconf.SplitList(vehicleNos)
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	return cfg, nil
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// overrideFromFlag copies one explicitly set flag over the file's value.
func overrideFromFlag(cfg *appconf.Config, flagged appconf.Config, name string) {
	switch name {
	case "port":
		cfg.Port = flagged.Port
	case "rate-limit":
		cfg.RateLimit = flagged.RateLimit
	case "verbose":
		cfg.Verbose = flagged.Verbose
	case "snapshot-url":
		cfg.SnapshotURL = flagged.SnapshotURL
	case "snapshot-key":
		cfg.SnapshotKey = flagged.SnapshotKey
	case "batch-url":
		cfg.BatchURL = flagged.BatchURL
	case "gtfs-rt-url":
		cfg.GTFSRealtimeURL = flagged.GTFSRealtimeURL
	case "history-url":
		cfg.RouteHistoryURL = flagged.RouteHistoryURL
	case "poll-interval":
		cfg.PollInterval = flagged.PollInterval
	case "fetch-timeout":
		cfg.FetchTimeout = flagged.FetchTimeout
	case "geofence-refresh":
		cfg.StoreRefresh = flagged.StoreRefresh
	case "geofence-db":
		cfg.GeofenceDB = flagged.GeofenceDB
	case "allowed-origin":
		cfg.AllowedOrigin = flagged.AllowedOrigin
	}
}

// telemetrySources builds one adapter per configured backend.
func telemetrySources(cfg appconf.Config, logger *slog.Logger) feed.Multi {
	var sources feed.Multi
	if cfg.SnapshotURL != "" {
		sources = append(sources, feed.NewSnapshotSource(cfg.SnapshotURL, cfg.SnapshotKey, cfg.FetchTimeout, logger))
	}
	if cfg.BatchURL != "" {
		sources = append(sources, feed.NewBatchSource(cfg.BatchURL, cfg.BatchVehicleNos, cfg.FetchTimeout, logger))
	}
	if cfg.GTFSRealtimeURL != "" {
		sources = append(sources, feed.NewGTFSRealtimeSource(cfg.GTFSRealtimeURL, nil, cfg.FetchTimeout, logger))
	}
	return sources
}

// buildApplication wires every component. The caller owns Shutdown.
func buildApplication(ctx context.Context, cfg appconf.Config, logger *slog.Logger) (*app.Application, error) {
	store, err := geofence.NewSQLiteStore(ctx, geofence.Config{DBPath: cfg.GeofenceDB, Env: cfg.Env}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening geofence store: %w", err)
	}
	zones := geofence.NewCache(store, logger)
	zones.Start(ctx, cfg.StoreRefresh)

	application := &app.Application{
		Config:    cfg,
		Logger:    logger,
		Geofences: zones,
	}

	if !cfg.HasTelemetrySource() {
		logger.Warn("no telemetry backend configured; live views will stay empty")
	}
	fetch := livetrack.Pipeline(telemetrySources(cfg, logger), telemetry.NewNormalizer(logger))
	application.Tracker = livetrack.NewManager(livetrack.NewPoller(fetch, cfg.PollInterval, cfg.FetchTimeout, logger), logger)

	application.Dashboard, err = application.Tracker.Mount(app.DashboardViewID, nil)
	if err != nil {
		application.Shutdown()
		return nil, fmt.Errorf("mounting dashboard view: %w", err)
	}

	if cfg.RouteHistoryURL != "" {
		application.History = feed.NewRouteHistoryClient(cfg.RouteHistoryURL, cfg.FetchTimeout, logger)
	}
	application.Hub = mapsurface.NewHub(application.Tracker, zones, zones.Create, cfg.AllowedOrigin, logger)

	return application, nil
}

// newServer mounts the REST API and the debug UI on one router.
func newServer(application *app.Application, api *restapi.RestAPI) *http.Server {
	router := httprouter.New()
	api.SetRoutes(router)
	(&webui.WebUI{Application: application}).SetWebUIRoutes(router)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", application.Config.Port),
		Handler:      api.WithMiddleware(router),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(application.Logger.Handler(), slog.LevelError),
	}
}

func run(ctx context.Context, cfg appconf.Config, logger *slog.Logger) error {
	application, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	api := restapi.NewRestAPI(application)
	defer api.Close()

	srv := newServer(application, api)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env.String())
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Live sockets are hijacked, so the hub has to close them itself.
	application.Hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
