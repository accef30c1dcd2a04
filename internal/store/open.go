package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/health"
	"github.com/dunamismax/pixelconv/internal/storage"
	"github.com/rs/zerolog"
)

// Backend is an opened ImageStore together with its readiness checks.
type Backend struct {
	Store   ImageStore
	Checks  []health.Check
	closers []func() error
}

func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the metadata and blob backends named in cfg.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Backend, error) {
	if cfg.Store.Metadata == config.MetadataMemory {
		logger.Warn().Msg("using in-memory image store; uploads are lost on restart")
		return &Backend{Store: NewMemoryImageStore()}, nil
	}

	backend := &Backend{}

	blobs, blobCheck, err := openBlobs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	backend.Checks = append(backend.Checks, blobCheck)

	var sqlStore *SQLImageStore
	switch cfg.Store.Metadata {
	case config.MetadataPostgres:
		sqlStore, err = NewPostgresImageStore(ctx, cfg.Database.DSN, blobs)
	case config.MetadataSQLite:
		sqlStore, err = NewSQLiteImageStore(ctx, cfg.Store.SQLitePath, blobs)
	default:
		err = fmt.Errorf("unsupported metadata store: %q", cfg.Store.Metadata)
	}
	if err != nil {
		return nil, err
	}

	backend.Store = sqlStore
	backend.closers = append(backend.closers, sqlStore.Close)
	backend.Checks = append(backend.Checks, health.Check{Name: cfg.Store.Metadata, Probe: sqlStore.Ping})

	logger.Info().
		Str("metadata", cfg.Store.Metadata).
		Str("blobs", cfg.Store.Blobs).
		Msg("image store ready")
	return backend, nil
}

func openBlobs(ctx context.Context, cfg config.Config) (BlobStore, health.Check, error) {
	switch cfg.Store.Blobs {
	case config.BlobsFilesystem:
		fs, err := storage.NewFilesystem(cfg.Store.BlobDir)
		if err != nil {
			return nil, health.Check{}, err
		}
		return fs, health.Check{Name: "blobs", Probe: fs.Ping}, nil
	case config.BlobsMinio:
		client, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, health.Check{}, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, health.Check{}, err
		}
		return client, health.Check{Name: "blobs", Probe: client.Ping}, nil
	default:
		return nil, health.Check{}, fmt.Errorf("unsupported blob store: %q", cfg.Store.Blobs)
	}
}
