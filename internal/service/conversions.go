package service

import (
	"context"
	"errors"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/dunamismax/pixelconv/internal/pipeline"
	"github.com/dunamismax/pixelconv/internal/store"
	"github.com/rs/zerolog"
)

type Conversions struct {
	store       store.ImageStore
	transformer pipeline.Transformer
	logger      zerolog.Logger
}

func NewConversions(imageStore store.ImageStore, transformer pipeline.Transformer, logger zerolog.Logger) (*Conversions, error) {
	if imageStore == nil {
		return nil, errors.New("image store is required")
	}
	if transformer == nil {
		return nil, errors.New("transformer is required")
	}
	return &Conversions{store: imageStore, transformer: transformer, logger: logger}, nil
}

// ConvertImage loads the image and applies kind to it. Store and transform
// errors are returned unchanged.
func (c *Conversions) ConvertImage(ctx context.Context, kind domain.Conversion, imageID string) (domain.ConvertedImage, error) {
	image, err := c.store.Get(ctx, imageID)
	if err != nil {
		return domain.ConvertedImage{}, err
	}

	converted, err := c.transformer.Transform(ctx, kind, image.Format, image.Blob)
	if err != nil {
		return domain.ConvertedImage{}, err
	}

	c.logger.Debug().
		Str("image_id", imageID).
		Stringer("conversion", kind).
		Stringer("input_format", image.Format).
		Stringer("output_format", converted.Format).
		Int("bytes", len(converted.Data)).
		Msg("image converted")
	return converted, nil
}
