package service

import (
	"context"
	"errors"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/dunamismax/pixelconv/internal/store"
	"github.com/rs/zerolog"
)

type Uploads struct {
	store  store.ImageStore
	logger zerolog.Logger
}

func NewUploads(imageStore store.ImageStore, logger zerolog.Logger) (*Uploads, error) {
	if imageStore == nil {
		return nil, errors.New("image store is required")
	}
	return &Uploads{store: imageStore, logger: logger}, nil
}

// UploadImage classifies the file by its suffix and stores the bytes as-is.
// The bytes are not decoded until the first conversion.
func (u *Uploads) UploadImage(ctx context.Context, blob []byte, fileName string) (string, error) {
	format, err := domain.FormatFromFileName(fileName)
	if err != nil {
		return "", err
	}

	imageID, err := u.store.Create(ctx, fileName, format, blob)
	if err != nil {
		return "", err
	}

	u.logger.Debug().
		Str("image_id", imageID).
		Str("name", fileName).
		Stringer("format", format).
		Int("bytes", len(blob)).
		Msg("image stored")
	return imageID, nil
}
