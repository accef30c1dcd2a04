package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWiresServicesOnConfiguredStore(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Load()
	cfg.Store.Metadata = config.MetadataSQLite
	cfg.Store.Blobs = config.BlobsFilesystem
	cfg.Store.SQLitePath = filepath.Join(dir, "images.db")
	cfg.Store.BlobDir = filepath.Join(dir, "blobs")

	runtime, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer runtime.Close()

	assert.Len(t, runtime.Checks, 2)

	imageID, err := runtime.Uploads.UploadImage(context.Background(), testPNG(t), "test_image.png")
	require.NoError(t, err)

	got, err := runtime.Conversions.ConvertImage(context.Background(), domain.ConversionJPEG, imageID)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJPEG, got.Format)
}

func TestOpenRejectsUnknownStore(t *testing.T) {
	cfg := config.Load()
	cfg.Store.Metadata = "mongodb"
	cfg.Store.Blobs = config.BlobsFilesystem
	cfg.Store.BlobDir = t.TempDir()

	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "mongodb")
}
