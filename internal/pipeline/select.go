package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
)

// SensorSource reads the raw piezometer listing.
type SensorSource interface {
	ExtractSensors(ctx context.Context) ([]domain.Sensor, error)
}

// SensorSink writes the selected sensors.
type SensorSink interface {
	LoadSensors(ctx context.Context, sensors []domain.Sensor) error
}

// SelectJob narrows the raw listing to one sensor per aquifer body in a
// department. Its output is the sensor listing read by Job.
type SelectJob struct {
	source     SensorSource
	sink       SensorSink
	department string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func NewSelectJob(src SensorSource, sink SensorSink, department string, logger *slog.Logger, metrics *observability.Metrics) *SelectJob {
	return &SelectJob{source: src, sink: sink, department: department, logger: logger, metrics: metrics}
}

// Run reads, selects and writes once. It returns the number of sensors kept.
func (s *SelectJob) Run(ctx context.Context) (int, error) {
	listing, err := s.source.ExtractSensors(ctx)
	if err != nil {
		return 0, fmt.Errorf("extract listing: %w", err)
	}
	s.metrics.SensorsRead.Add(float64(len(listing)))

	selected := domain.SelectSensors(listing, s.department)

	if err := s.sink.LoadSensors(ctx, selected); err != nil {
		return 0, fmt.Errorf("load selection: %w", err)
	}
	s.metrics.SensorsKept.Add(float64(len(selected)))

	s.logger.Info("sensors selected",
		"department", s.department,
		"listed", len(listing),
		"selected", len(selected),
	)
	return len(selected), nil
}
