package service

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/health"
	"github.com/dunamismax/pixelconv/internal/pipeline"
	"github.com/dunamismax/pixelconv/internal/store"
	"github.com/rs/zerolog"
)

// Runtime is the wired upload and conversion services with the backends
// they run on.
type Runtime struct {
	Uploads     *Uploads
	Conversions *Conversions
	Checks      []health.Check
	backend     *store.Backend
}

// Open starts the image backend and the store selected by cfg.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Runtime, error) {
	if err := pipeline.Startup(); err != nil {
		return nil, fmt.Errorf("start image backend: %w", err)
	}

	transformer, err := pipeline.New(pipeline.Options{JPEGQuality: cfg.Image.JPEGQuality})
	if err != nil {
		pipeline.Shutdown()
		return nil, fmt.Errorf("initialize transformer: %w", err)
	}

	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		pipeline.Shutdown()
		return nil, fmt.Errorf("open image store: %w", err)
	}

	uploads, err := NewUploads(backend.Store, logger)
	if err != nil {
		return nil, closeWith(backend, err)
	}
	conversions, err := NewConversions(backend.Store, transformer, logger)
	if err != nil {
		return nil, closeWith(backend, err)
	}

	logger.Info().Str("image_backend", pipeline.Backend()).Int("jpeg_quality", cfg.Image.JPEGQuality).Msg("services ready")
	return &Runtime{
		Uploads:     uploads,
		Conversions: conversions,
		Checks:      backend.Checks,
		backend:     backend,
	}, nil
}

func (r *Runtime) Close() error {
	defer pipeline.Shutdown()
	return r.backend.Close()
}

func closeWith(backend *store.Backend, err error) error {
	pipeline.Shutdown()
	_ = backend.Close()
	return err
}
