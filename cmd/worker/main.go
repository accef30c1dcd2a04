package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/health"
	"github.com/dunamismax/pixelconv/internal/service"
	"github.com/dunamismax/pixelconv/internal/telemetry"
	"github.com/dunamismax/pixelconv/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configFile string

	cmd := &cobra.Command{
		Use:          "pixelconv-worker",
		Short:        "Runs the upload and conversion services behind the task queue",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				if err := config.ReadFile(v, configFile); err != nil {
					return err
				}
			}
			cfg := config.FromViper(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "optional config file (yaml, toml or json)")
	flags.Int("concurrency", 0, "number of tasks handled in parallel")
	flags.String("metrics-addr", "", "listen address for /metrics and /readyz")
	flags.String("log-level", "", "debug, info, warn or error")
	bindFlags(v, cmd, map[string]string{
		"concurrency":  config.KeyWorkerConcurrency,
		"metrics-addr": config.KeyWorkerMetricsAddr,
		"log-level":    config.KeyLogLevel,
	})

	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := telemetry.NewLogger(cfg.Log, "worker")
	logger.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Str("queue", cfg.Queue.Name).
		Str("redis", cfg.Queue.RedisAddr).
		Msg("starting worker")

	shutdownTracing, err := telemetry.SetupTracing(ctx, "pixelconv-worker", cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	runtime, err := service.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLogged(logger, "image store", runtime.Close)

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, runtime.Uploads, runtime.Conversions)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer closeLogged(logger, "redis client", rdb.Close)
	checks := append([]health.Check{health.RedisCheck(rdb)}, runtime.Checks...)

	opsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.OpsHandler(checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.Worker.MetricsAddr).Msg("metrics listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics shutdown failed")
	}
	return nil
}

func closeLogged(logger zerolog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error().Err(err).Str("resource", name).Msg("close failed")
	}
}
