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

	"github.com/dunamismax/pixelconv/internal/api"
	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/health"
	"github.com/dunamismax/pixelconv/internal/queue"
	"github.com/dunamismax/pixelconv/internal/service"
	"github.com/dunamismax/pixelconv/internal/telemetry"
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
		Use:          "pixelconv-api",
		Short:        "HTTP gateway for uploading and converting images",
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
	flags.String("addr", "", "listen address")
	flags.String("rpc-mode", "", "asynq to call the worker, local to run the services in-process")
	flags.String("log-level", "", "debug, info, warn or error")
	bindFlags(v, cmd, map[string]string{
		"addr":      config.KeyAPIAddr,
		"rpc-mode":  config.KeyRPCMode,
		"log-level": config.KeyLogLevel,
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

	logger := telemetry.NewLogger(cfg.Log, "api")

	shutdownTracing, err := telemetry.SetupTracing(ctx, "pixelconv-api", cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	var (
		uploader  service.Uploader
		converter service.Converter
		checks    []health.Check
	)
	switch cfg.RPC.Mode {
	case config.RPCModeLocal:
		runtime, err := service.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeLogged(logger, "image store", runtime.Close)
		uploader, converter, checks = runtime.Uploads, runtime.Conversions, runtime.Checks
	default:
		client := queue.NewClient(cfg.Queue, cfg.RPC)
		defer closeLogged(logger, "queue client", client.Close)
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer closeLogged(logger, "redis client", rdb.Close)
		uploader, converter, checks = client, client, []health.Check{health.RedisCheck(rdb)}
	}

	app := api.NewServer(logger, uploader, converter, api.Options{
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		Checks:         checks,
	})

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RPC.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.API.Addr).
			Str("rpc_mode", cfg.RPC.Mode).
			Str("queue", cfg.Queue.Name).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}

func closeLogged(logger zerolog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error().Err(err).Str("resource", name).Msg("close failed")
	}
}
