// Package sqlite persists association runs to a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const insertRunSQL = `INSERT INTO runs (id, generated_at, sensors, stations, associated, unassociated, consistent)
VALUES (?, ?, ?, ?, ?, ?, ?)`

const insertAssociationSQL = `INSERT INTO associations (
  run_id, position, sensor_id, sensor_name, start_date, end_date, measurement_count,
  station_id, station_name, sensor_lat, sensor_lon, station_lat, station_lon,
  distance_km, consistent, furthest_rank
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const latestRunSQL = `SELECT id, generated_at, sensors, stations, associated, unassociated, consistent
FROM runs ORDER BY generated_at DESC, rowid DESC LIMIT 1`

const associationsSQL = `SELECT sensor_id, station_name, distance_km, consistent, furthest_rank
FROM associations WHERE run_id = ? ORDER BY position`

// Store writes runs and their associations.
// It implements pipeline.Loader.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// RunSummary is the persisted header of a run.
type RunSummary struct {
	ID           string
	GeneratedAt  time.Time
	Sensors      int
	Stations     int
	Associated   int
	Unassociated int
	Consistent   int
}

// StoredAssociation is one persisted association row.
type StoredAssociation struct {
	SensorID     string
	StationName  string
	DistanceKm   float64
	Consistent   bool
	FurthestRank int // 0 when not among the furthest
}

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One writer at a time; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on", nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// Load persists the run and all its associations in one transaction.
func (s *Store) Load(ctx context.Context, run domain.Run) (err error) {
	if run.ID == "" {
		return errors.New("sqlite: run has no id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback run", "run_id", run.ID, "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, insertRunSQL,
		run.ID,
		run.GeneratedAt.UTC().Format(time.RFC3339Nano),
		run.SensorCount,
		run.StationCount,
		len(run.Associations),
		len(run.Unassociated),
		len(run.Consistent),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertAssociationSQL)
	if err != nil {
		return fmt.Errorf("prepare association insert: %w", err)
	}
	defer stmt.Close()

	consistent := make(map[string]bool, len(run.Consistent))
	for _, a := range run.Consistent {
		consistent[a.Sensor.ID] = true
	}
	rank := make(map[string]int, len(run.Furthest))
	for i, a := range run.Furthest {
		if _, seen := rank[a.Sensor.ID]; !seen {
			rank[a.Sensor.ID] = i + 1
		}
	}

	for i, a := range run.Associations {
		var furthest sql.NullInt64
		if r, ok := rank[a.Sensor.ID]; ok {
			furthest = sql.NullInt64{Int64: int64(r), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			run.ID, i,
			a.Sensor.ID, a.Sensor.Name, a.Sensor.StartDate, a.Sensor.EndDate, a.Sensor.MeasurementCount,
			a.Station.ID, a.Station.Name,
			a.Sensor.Geo.Lat, a.Sensor.Geo.Lon, a.Station.Geo.Lat, a.Station.Geo.Lon,
			a.DistanceKm, consistent[a.Sensor.ID], furthest,
		); err != nil {
			return fmt.Errorf("insert association %s: %w", a.Sensor.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	s.logger.Debug("run persisted", "run_id", run.ID, "associations", len(run.Associations))
	return nil
}

// LatestRun returns the most recently generated run. ok is false when the
// database holds no run yet.
func (s *Store) LatestRun(ctx context.Context) (summary RunSummary, ok bool, err error) {
	var generatedAt string
	err = s.db.QueryRowContext(ctx, latestRunSQL).Scan(
		&summary.ID, &generatedAt, &summary.Sensors, &summary.Stations,
		&summary.Associated, &summary.Unassociated, &summary.Consistent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, false, nil
	}
	if err != nil {
		return RunSummary{}, false, fmt.Errorf("query latest run: %w", err)
	}
	summary.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return RunSummary{}, false, fmt.Errorf("parse generated_at %q: %w", generatedAt, err)
	}
	return summary, true, nil
}

// Associations returns the associations of a run in their original order.
func (s *Store) Associations(ctx context.Context, runID string) ([]StoredAssociation, error) {
	rows, err := s.db.QueryContext(ctx, associationsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("query associations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close association rows", "error", err)
		}
	}()

	var out []StoredAssociation
	for rows.Next() {
		var a StoredAssociation
		var rank sql.NullInt64
		if err := rows.Scan(&a.SensorID, &a.StationName, &a.DistanceKm, &a.Consistent, &rank); err != nil {
			return nil, err
		}
		a.FurthestRank = int(rank.Int64)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
