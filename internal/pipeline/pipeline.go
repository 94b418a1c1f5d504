package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
	"github.com/google/uuid"
)

// Extractor reads the sensor and station listings.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.Sensor, []domain.Station, error)
}

// Loader writes a completed run to a destination.
type Loader interface {
	Load(ctx context.Context, run domain.Run) error
}

// Settings tunes the association pass.
type Settings struct {
	FurthestCount int
	SpatialIndex  bool
}

type namedLoader struct {
	name string
	Loader
}

// Job orchestrates one extract-associate-load pass over the listings.
type Job struct {
	extractor Extractor
	loaders   []namedLoader
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics
	newID     func() string

	ready   atomic.Bool
	mu      sync.RWMutex
	lastRun *domain.Run
}

// New creates a Job reading from e. Add destinations with AddLoader.
func New(e Extractor, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Job {
	return &Job{
		extractor: e,
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
		newID:     uuid.NewString,
	}
}

// AddLoader registers a destination. Loaders run in registration order and
// name labels their errors in metrics and logs.
func (j *Job) AddLoader(name string, l Loader) {
	j.loaders = append(j.loaders, namedLoader{name: name, Loader: l})
}

// CheckReadiness returns nil once a run has loaded into every destination.
func (j *Job) CheckReadiness(_ context.Context) error {
	if !j.ready.Load() {
		return errors.New("no association run has completed yet")
	}
	return nil
}

// LastRun returns the most recent run that got past association, loaded or not.
func (j *Job) LastRun() (domain.Run, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.lastRun == nil {
		return domain.Run{}, false
	}
	return *j.lastRun, true
}

// Run extracts the listings, associates every sensor and hands the run to each
// loader. A failing loader does not stop the others; their errors are joined.
func (j *Job) Run(ctx context.Context) (domain.Run, error) {
	start := time.Now()
	j.metrics.JobRunning.Set(1)
	defer j.metrics.JobRunning.Set(0)

	sensors, stations, err := j.extractor.Extract(ctx)
	if err != nil {
		return domain.Run{}, fmt.Errorf("extract: %w", err)
	}
	j.metrics.SensorsRead.Add(float64(len(sensors)))
	j.metrics.StationsRead.Add(float64(len(stations)))
	j.logger.Info("listings read", "sensors", len(sensors), "stations", len(stations))

	run := j.associate(sensors, stations)
	run.ID = j.newID()

	j.metrics.Associations.Add(float64(len(run.Associations)))
	j.metrics.Unassociated.Add(float64(len(run.Unassociated)))
	j.metrics.Consistent.Add(float64(len(run.Consistent)))

	j.mu.Lock()
	j.lastRun = &run
	j.mu.Unlock()

	var errs []error
	for _, l := range j.loaders {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if err := l.Load(ctx, run); err != nil {
			j.logger.Error("load failed", "sink", l.name, "run_id", run.ID, "error", err)
			j.metrics.LoaderErrors.WithLabelValues(l.name).Inc()
			errs = append(errs, fmt.Errorf("load %s: %w", l.name, err))
		}
	}
	j.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if len(errs) > 0 {
		return run, errors.Join(errs...)
	}

	j.metrics.LastRunTime.Set(float64(run.GeneratedAt.Unix()))
	j.ready.Store(true)
	j.logger.Info("association run completed",
		"run_id", run.ID,
		"associated", len(run.Associations),
		"unassociated", len(run.Unassociated),
		"consistent", len(run.Consistent),
		"duration", time.Since(start),
	)
	return run, nil
}

func (j *Job) associate(sensors []domain.Sensor, stations []domain.Station) domain.Run {
	if j.settings.SpatialIndex {
		return domain.NewStationIndex(stations).RunAssociation(sensors, j.settings.FurthestCount, j.logger)
	}
	return domain.RunAssociation(sensors, stations, j.settings.FurthestCount, j.logger)
}
