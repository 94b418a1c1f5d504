package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/piezo-meteo-etl/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/piezo-meteo-etl/internal/adapter/mqtt"
	"github.com/couchcryptid/piezo-meteo-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/piezo-meteo-etl/internal/config"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
	"github.com/couchcryptid/piezo-meteo-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

const mqttConnectTimeout = 30 * time.Second

func newAssociateCmd(a *app) *cobra.Command {
	var flags associationFlags
	cmd := &cobra.Command{
		Use:   "associate",
		Short: "Pair each sensor with its nearest station and write the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.apply(cmd, a.cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			job, closeSinks, err := newAssociationJob(ctx, a.cfg, a.logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer closeSinks()

			run, err := job.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d sensors associated (%d consistent), run %s\n",
				len(run.Associations), run.SensorCount, len(run.Consistent), run.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// newAssociationJob builds the job with the CSV sink plus every optional sink
// the configuration enables. The returned func releases those sinks.
func newAssociationJob(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Job, func(), error) {
	src := csvfile.Source{SensorsPath: cfg.SensorsCSV, StationsPath: cfg.StationsCSV}
	job := pipeline.New(src, pipeline.Settings{
		FurthestCount: cfg.FurthestCount,
		SpatialIndex:  cfg.SpatialIndex,
	}, logger, metrics)

	job.AddLoader("csv", csvfile.Sink{
		AssociationsPath: cfg.AssociationsCSV,
		ConsistentPath:   cfg.ConsistentCSV,
		FurthestPath:     cfg.FurthestCSV,
	})

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		})
		if prev, ok, err := store.LatestRun(ctx); err != nil {
			logger.Warn("read previous run failed", "error", err)
		} else if ok {
			logger.Info("previous run found", "run_id", prev.ID, "generated_at", prev.GeneratedAt, "associated", prev.Associated)
		}
		job.AddLoader("sqlite", store)
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
		job.AddLoader("kafka", writer)
	}

	if cfg.MQTTBroker != "" {
		pub := mqttadapter.NewPublisher(cfg, logger)
		connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err := pub.Connect(connectCtx)
		cancel()
		if err != nil {
			pub.Disconnect()
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, pub.Disconnect)
		job.AddLoader("mqtt", pub)
	}

	return job, closeAll, nil
}
