package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/piezo-meteo-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
	"github.com/couchcryptid/piezo-meteo-etl/internal/pipeline"
	"github.com/couchcryptid/piezo-meteo-etl/internal/series"
	"github.com/spf13/cobra"
)

func newPrepareCmd(a *app) *cobra.Command {
	var (
		levels       string
		weather      []string
		associations string
		output       string
		scaling      string
		maxLag       int
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Join levels with station weather and write the prepared series",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("levels") {
				cfg.LevelsCSV = levels
			}
			if flags.Changed("weather") {
				cfg.WeatherCSV = weather
			}
			if flags.Changed("associations") {
				cfg.AssociationsCSV = associations
			}
			if flags.Changed("output") {
				cfg.PreparedCSV = output
			}
			if flags.Changed("max-lag") {
				if maxLag < 0 {
					return fmt.Errorf("invalid --max-lag %d: must be >= 0", maxLag)
				}
				cfg.MaxLag = maxLag
			}
			if flags.Changed("scaling") {
				s, err := series.ParseScaling(scaling)
				if err != nil {
					return fmt.Errorf("invalid --scaling: %w", err)
				}
				cfg.Normalization = s
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			src := csvfile.SeriesSource{
				LevelsPath:       cfg.LevelsCSV,
				WeatherPaths:     cfg.WeatherCSV,
				AssociationsPath: cfg.AssociationsCSV,
			}
			sink := csvfile.SeriesSink{
				ObservationsPath: cfg.ObservationsCSV,
				PreparedPath:     cfg.PreparedCSV,
				MaxLag:           cfg.MaxLag,
			}
			job := pipeline.NewPrepareJob(src, sink, cfg.PrepareOptions(), a.logger, observability.NewMetrics())

			stats, err := job.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d joined, %d complete, %d prepared rows written to %s\n",
				stats.Joined, stats.Cleaned, stats.Retained, cfg.PreparedCSV)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&levels, "levels", "", "level readings CSV (overrides LEVELS_CSV)")
	f.StringSliceVar(&weather, "weather", nil, "weather CSV files, comma separated (overrides WEATHER_CSV)")
	f.StringVar(&associations, "associations", "", "association CSV from a previous run (overrides ASSOCIATIONS_CSV)")
	f.StringVar(&output, "output", "", "prepared CSV to write (overrides PREPARED_CSV)")
	f.StringVar(&scaling, "scaling", "", "none, minmax or zscore (overrides NORMALIZATION)")
	f.IntVar(&maxLag, "max-lag", 0, "number of daily weather lags (overrides MAX_LAG)")
	return cmd
}
