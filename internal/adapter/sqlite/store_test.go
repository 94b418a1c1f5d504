package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func assoc(id string, km float64) domain.Association {
	return domain.Association{
		Sensor:     domain.Sensor{ID: id, Name: "piezo " + id, StartDate: "2020-01-01", EndDate: "2020-01-10", MeasurementCount: 10},
		Station:    domain.Station{ID: "34154001", Name: "MONTPELLIER-AEROPORT"},
		DistanceKm: km,
	}
}

func testRun(id string, at time.Time) domain.Run {
	a, b, c := assoc("BSS1", 1.5), assoc("BSS2", 7.25), assoc("BSS3", 3)
	return domain.Run{
		ID:           id,
		GeneratedAt:  at,
		SensorCount:  4,
		StationCount: 2,
		Associations: []domain.Association{a, b, c},
		Consistent:   []domain.Association{a, c},
		Furthest:     []domain.Association{b, c},
		Unassociated: []domain.Sensor{{ID: "BSS4"}},
	}
}

func TestStore_LoadAndRead(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2024, time.May, 2, 8, 30, 0, 0, time.UTC)

	require.NoError(t, s.Load(ctx, testRun("run-1", at)))

	summary, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RunSummary{
		ID: "run-1", GeneratedAt: at, Sensors: 4, Stations: 2,
		Associated: 3, Unassociated: 1, Consistent: 2,
	}, summary)

	rows, err := s.Associations(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []StoredAssociation{
		{SensorID: "BSS1", StationName: "MONTPELLIER-AEROPORT", DistanceKm: 1.5, Consistent: true},
		{SensorID: "BSS2", StationName: "MONTPELLIER-AEROPORT", DistanceKm: 7.25, FurthestRank: 1},
		{SensorID: "BSS3", StationName: "MONTPELLIER-AEROPORT", DistanceKm: 3, Consistent: true, FurthestRank: 2},
	}, rows)
}

func TestStore_LatestRunPicksNewest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.Load(ctx, testRun("older", base)))
	require.NoError(t, s.Load(ctx, testRun("newer", base.Add(time.Hour))))

	summary, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "newer", summary.ID)
}

func TestStore_EmptyDatabase(t *testing.T) {
	_, ok, err := openTestStore(t).LatestRun(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DuplicateRunIsRolledBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	run := testRun("run-1", time.Now())

	require.NoError(t, s.Load(ctx, run))
	err := s.Load(ctx, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run-1")

	rows, err := s.Associations(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestStore_RejectsRunWithoutID(t *testing.T) {
	err := openTestStore(t).Load(context.Background(), domain.Run{})
	require.Error(t, err)
}

func TestOpen_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := Open(path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background(), testRun("run-1", time.Now())))
	require.NoError(t, s.Close())

	reopened, err := Open(path, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()
	summary, ok, err := reopened.LatestRun(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", summary.ID)
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN(":memory:")
	require.NoError(t, err)
	assert.Equal(t, "file::memory:?_foreign_keys=on", dsn)

	dsn, err = buildDSN("file:runs.db?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "file:runs.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn)
}
