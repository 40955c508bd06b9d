package geofence

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fleetconsole.org/livemap/internal/appconf"
	"fleetconsole.org/livemap/internal/logging"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schema.sql
var ddl string

const memoryPath = ":memory:"

type Config struct {
	DBPath string
	Env    appconf.Environment
}

// SQLiteStore keeps zones in a single sqlite table. Polygon paths are
// stored as a JSON array.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewSQLiteStore(ctx context.Context, config Config, logger *slog.Logger) (*SQLiteStore, error) {
	if config.DBPath == "" {
		config.DBPath = memoryPath
	}
	if config.Env == appconf.Test && config.DBPath != memoryPath {
		return nil, fmt.Errorf("refusing to open file database %q in test environment", config.DBPath)
	}

	db, err := sql.Open("sqlite", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	configureConnectionPool(db, config.DBPath)

	if err := performDatabaseMigration(ctx, db); err != nil {
		logging.SafeCloseWithLogging(db, logger, "geofence_db")
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.Component(logger, "geofence_store"),
		now:    time.Now,
	}, nil
}

// Every connection to ":memory:" is its own database, so the in-memory
// store is pinned to one.
func configureConnectionPool(db *sql.DB, path string) {
	if path == memoryPath {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		return
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmed); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmed, err)
		}
	}
	return nil
}

// Timestamps are stored in milliseconds.
func (s *SQLiteStore) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, zone Zone) (Zone, error) {
	start := time.Now()
	now := s.stamp()
	if zone.CreatedAt.IsZero() {
		zone.CreatedAt = now
	}
	zone.CreatedAt = zone.CreatedAt.UTC().Truncate(time.Millisecond)
	zone.UpdatedAt = now
	if zone.Status == "" {
		zone.Status = StatusEnabled
	}

	row, err := toRow(zone)
	if err != nil {
		return Zone{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Zone{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, s.logger, "geofence_create")

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM geofences WHERE id = ?`, zone.ID).Scan(&exists)
	if err != nil {
		return Zone{}, fmt.Errorf("error checking geofence %s: %w", zone.ID, err)
	}
	if exists > 0 {
		return Zone{}, ErrExists
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO geofences (
			id, code, display_name, classification, geometry,
			center_lat, center_lng, radius, paths, status, color,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.id, row.code, row.displayName, row.classification, row.geometry,
		row.centerLat, row.centerLng, row.radius, row.paths, row.status, row.color,
		row.createdAt, row.updatedAt)
	if err != nil {
		return Zone{}, fmt.Errorf("error inserting geofence %s: %w", zone.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Zone{}, fmt.Errorf("error committing transaction: %w", err)
	}

	logging.LogOperation(s.logger, "geofence_created",
		slog.String("geofence_id", zone.ID),
		slog.String("geometry", string(zone.Geometry)),
		slog.Duration("duration", time.Since(start)))
	return zone, nil
}

const selectColumns = `id, code, display_name, classification, geometry,
	center_lat, center_lng, radius, paths, status, color, created_at, updated_at`

func (s *SQLiteStore) Get(ctx context.Context, id string) (Zone, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM geofences WHERE id = ?`, id)
	zone, err := scanZone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Zone{}, ErrNotFound
	}
	if err != nil {
		return Zone{}, fmt.Errorf("error loading geofence %s: %w", id, err)
	}
	return zone, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Zone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM geofences ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("error listing geofences: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, s.logger, "geofence_rows")

	zones := []Zone{}
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning geofence: %w", err)
		}
		zones = append(zones, zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating geofences: %w", err)
	}
	return zones, nil
}

// Update replaces every column of an existing zone. CreatedAt is kept from
// the stored row.
func (s *SQLiteStore) Update(ctx context.Context, zone Zone) (Zone, error) {
	zone.UpdatedAt = s.stamp()
	if zone.Status == "" {
		zone.Status = StatusEnabled
	}
	row, err := toRow(zone)
	if err != nil {
		return Zone{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE geofences SET
			code = ?, display_name = ?, classification = ?, geometry = ?,
			center_lat = ?, center_lng = ?, radius = ?, paths = ?,
			status = ?, color = ?, updated_at = ?
		WHERE id = ?`,
		row.code, row.displayName, row.classification, row.geometry,
		row.centerLat, row.centerLng, row.radius, row.paths,
		row.status, row.color, row.updatedAt, row.id)
	if err != nil {
		return Zone{}, fmt.Errorf("error updating geofence %s: %w", zone.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Zone{}, ErrNotFound
	}

	logging.LogOperation(s.logger, "geofence_updated", slog.String("geofence_id", zone.ID))
	return s.Get(ctx, zone.ID)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM geofences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting geofence %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	logging.LogOperation(s.logger, "geofence_deleted", slog.String("geofence_id", id))
	return nil
}

type zoneRow struct {
	id, code, displayName, classification, geometry string
	centerLat, centerLng, radius                    sql.NullFloat64
	paths                                           sql.NullString
	status, color                                   string
	createdAt, updatedAt                            int64
}

func toRow(z Zone) (zoneRow, error) {
	row := zoneRow{
		id:             z.ID,
		code:           z.Code,
		displayName:    z.DisplayName,
		classification: string(z.Classification),
		geometry:       string(z.Geometry),
		status:         string(z.Status),
		color:          z.Color,
		createdAt:      z.CreatedAt.UnixMilli(),
		updatedAt:      z.UpdatedAt.UnixMilli(),
	}
	if z.Center != nil {
		row.centerLat = sql.NullFloat64{Float64: z.Center.Lat, Valid: true}
		row.centerLng = sql.NullFloat64{Float64: z.Center.Lng, Valid: true}
	}
	if z.Radius != nil {
		row.radius = sql.NullFloat64{Float64: *z.Radius, Valid: true}
	}
	if z.Paths != nil {
		b, err := json.Marshal(z.Paths)
		if err != nil {
			return zoneRow{}, fmt.Errorf("error encoding paths for geofence %s: %w", z.ID, err)
		}
		row.paths = sql.NullString{String: string(b), Valid: true}
	}
	return row, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanZone(sc scanner) (Zone, error) {
	var row zoneRow
	err := sc.Scan(&row.id, &row.code, &row.displayName, &row.classification, &row.geometry,
		&row.centerLat, &row.centerLng, &row.radius, &row.paths, &row.status, &row.color,
		&row.createdAt, &row.updatedAt)
	if err != nil {
		return Zone{}, err
	}

	zone := Zone{
		ID:             row.id,
		Code:           row.code,
		DisplayName:    row.displayName,
		Classification: Classification(row.classification),
		Geometry:       Geometry(row.geometry),
		Status:         Status(row.status),
		Color:          row.color,
		CreatedAt:      time.UnixMilli(row.createdAt).UTC(),
		UpdatedAt:      time.UnixMilli(row.updatedAt).UTC(),
	}
	if row.centerLat.Valid && row.centerLng.Valid {
		zone.Center = &LatLng{Lat: row.centerLat.Float64, Lng: row.centerLng.Float64}
	}
	if row.radius.Valid {
		r := row.radius.Float64
		zone.Radius = &r
	}
	if row.paths.Valid {
		if err := json.Unmarshal([]byte(row.paths.String), &zone.Paths); err != nil {
			return Zone{}, fmt.Errorf("error decoding paths for geofence %s: %w", row.id, err)
		}
	}
	return zone, nil
}
