package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/piezo-meteo-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
	"github.com/couchcryptid/piezo-meteo-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

func newSelectCmd(a *app) *cobra.Command {
	var listing, output, department string

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Keep the longest-running piezometer of each aquifer body in a department",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("listing") {
				cfg.SensorListingCSV = listing
			}
			if flags.Changed("output") {
				cfg.SensorsCSV = output
			}
			if flags.Changed("department") {
				cfg.SelectDepartment = department
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			l := csvfile.Listing{ListingPath: cfg.SensorListingCSV, SelectedPath: cfg.SensorsCSV}
			job := pipeline.NewSelectJob(l, l, cfg.SelectDepartment, a.logger, observability.NewMetrics())

			n, err := job.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d sensors written to %s\n", n, cfg.SensorsCSV)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&listing, "listing", "", "raw Hub'Eau piezometer listing (overrides SENSOR_LISTING_CSV)")
	f.StringVar(&output, "output", "", "selected sensor CSV to write (overrides SENSORS_CSV)")
	f.StringVar(&department, "department", "", "department to keep, empty for all (overrides SELECT_DEPARTMENT)")
	return cmd
}
