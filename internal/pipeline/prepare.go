package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
	"github.com/couchcryptid/piezo-meteo-etl/internal/series"
)

// SeriesSource reads level readings, weather readings and the associations
// that tie them together.
type SeriesSource interface {
	ExtractSeries(ctx context.Context) ([]series.LevelReading, []series.WeatherReading, []domain.Association, error)
}

// SeriesSink writes the joined and the prepared observations.
type SeriesSink interface {
	LoadSeries(ctx context.Context, joined, prepared []series.Observation) error
}

// PrepareJob joins groundwater levels with station weather and prepares the
// result for analysis.
type PrepareJob struct {
	source  SeriesSource
	sink    SeriesSink
	opts    series.Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewPrepareJob(src SeriesSource, sink SeriesSink, opts series.Options, logger *slog.Logger, metrics *observability.Metrics) *PrepareJob {
	return &PrepareJob{source: src, sink: sink, opts: opts, logger: logger, metrics: metrics}
}

// Run executes extract, join, prepare and load once.
func (p *PrepareJob) Run(ctx context.Context) (series.Stats, error) {
	levels, weather, assocs, err := p.source.ExtractSeries(ctx)
	if err != nil {
		return series.Stats{}, fmt.Errorf("extract series: %w", err)
	}
	p.logger.Info("series read",
		"levels", len(levels),
		"weather", len(weather),
		"associations", len(assocs),
	)

	joined := series.Join(levels, weather, assocs)
	prepared, stats := series.Prepare(joined, p.opts)

	p.metrics.RowsDiscarded.WithLabelValues("clean").Add(float64(stats.Joined - stats.Cleaned))
	p.metrics.RowsDiscarded.WithLabelValues("outliers").Add(float64(stats.Cleaned - stats.Retained))

	if err := p.sink.LoadSeries(ctx, joined, prepared); err != nil {
		return stats, fmt.Errorf("load series: %w", err)
	}
	p.metrics.RowsPrepared.Add(float64(len(prepared)))

	p.logger.Info("series prepared",
		"joined", stats.Joined,
		"cleaned", stats.Cleaned,
		"retained", stats.Retained,
		"scaling", p.opts.Scaling,
	)
	return stats, nil
}
