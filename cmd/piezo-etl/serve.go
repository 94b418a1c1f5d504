package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/piezo-meteo-etl/internal/adapter/http"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var flags associationFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one association pass, then expose health, metrics and the last run over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.apply(cmd, a.cfg); err != nil {
				return err
			}
			cfg, logger := a.cfg, a.logger

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			job, closeSinks, err := newAssociationJob(ctx, cfg, logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer closeSinks()

			srv := httpadapter.NewServer(cfg.HTTPAddr, job, job, logger)

			// Start HTTP server.
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
					stop()
				}
			}()

			// Readiness stays false until a run loads everywhere, so a failure
			// here is reported by /readyz rather than ending the process.
			if _, err := job.Run(ctx); err != nil {
				logger.Error("association run failed", "error", err)
			}

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
