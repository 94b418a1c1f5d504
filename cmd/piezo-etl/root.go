package main

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/piezo-meteo-etl/internal/config"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once flags and environment are merged.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	root := &cobra.Command{
		Use:          "piezo-etl",
		Short:        "Associate piezometers with weather stations and prepare their series",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			a.logger = observability.NewLogger(cfg)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newAssociateCmd(a),
		newPrepareCmd(a),
		newSelectCmd(a),
		newServeCmd(a),
	)
	return root
}

// associationFlags are shared by the associate and serve commands. Each one
// overrides its environment variable only when set on the command line.
type associationFlags struct {
	sensors  string
	stations string
	output   string
	furthest int
	spatial  bool
}

func (f *associationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sensors, "sensors", "", "sensor listing CSV (overrides SENSORS_CSV)")
	cmd.Flags().StringVar(&f.stations, "stations", "", "station listing CSV (overrides STATIONS_CSV)")
	cmd.Flags().StringVar(&f.output, "output", "", "association CSV to write (overrides ASSOCIATIONS_CSV)")
	cmd.Flags().IntVar(&f.furthest, "furthest", 0, "number of furthest associations to report (overrides FURTHEST_COUNT)")
	cmd.Flags().BoolVar(&f.spatial, "spatial-index", false, "use an R-tree for station lookups (overrides SPATIAL_INDEX)")
}

func (f *associationFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("sensors") {
		cfg.SensorsCSV = f.sensors
	}
	if flags.Changed("stations") {
		cfg.StationsCSV = f.stations
	}
	if flags.Changed("output") {
		cfg.AssociationsCSV = f.output
	}
	if flags.Changed("furthest") {
		if f.furthest < 0 {
			return fmt.Errorf("invalid --furthest %d: must be >= 0", f.furthest)
		}
		cfg.FurthestCount = f.furthest
	}
	if flags.Changed("spatial-index") {
		cfg.SpatialIndex = f.spatial
	}
	return nil
}
