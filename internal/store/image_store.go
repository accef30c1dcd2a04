package store

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixelconv/internal/domain"
)

// ImageStore persists uploaded images. Implementations must be safe for
// concurrent use.
type ImageStore interface {
	Create(ctx context.Context, name string, format domain.Format, blob []byte) (string, error)
	Get(ctx context.Context, id string) (domain.StoredImage, error)
}

// BlobStore holds the raw image bytes referenced by metadata rows.
type BlobStore interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

func blobKey(id string, format domain.Format) string {
	return fmt.Sprintf("images/%s/source.%s", id, format.Extension())
}

func invalidID(id string) error {
	return fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
