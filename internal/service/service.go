// Package service holds the upload and conversion operations. Both the
// worker (behind the RPC queue) and the gateway's local mode call them.
package service

import (
	"context"

	"github.com/dunamismax/pixelconv/internal/domain"
)

// Uploader stores a new image and returns its identifier.
type Uploader interface {
	UploadImage(ctx context.Context, blob []byte, fileName string) (string, error)
}

// Converter produces one conversion of a stored image.
type Converter interface {
	ConvertImage(ctx context.Context, kind domain.Conversion, imageID string) (domain.ConvertedImage, error)
}
