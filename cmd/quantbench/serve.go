package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/api"
	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quantbench HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := metrics.NewRegistry()

	return withLab(reg, func(lab *app.Lab, cfg *config.Config, log *zap.Logger) error {
		deps := api.Dependencies{Lab: lab}
		if cfg.Metrics.Enabled {
			deps.Metrics = reg
		}

		server, err := api.NewServer(api.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			APIKey:         cfg.Server.APIKey,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxJobs:        cfg.Server.MaxJobs,
			JobTTL:         time.Duration(cfg.Server.JobTTLHours) * time.Hour,
			RunTimeout:     cfg.Server.RunTimeout,
			MetricsPath:    cfg.Metrics.Path,
		}, deps, log)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		log.Info("starting quantbench server",
			zap.String("addr", cfg.Addr()),
			zap.Bool("metrics", cfg.Metrics.Enabled),
			zap.Bool("auth", cfg.Server.APIKey != ""),
		)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		// Wait for shutdown signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		log.Info("shutting down quantbench server")

		// Graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return server.Shutdown(ctx)
	})
}
