//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pixelconv/internal/domain"
)

type govipsTransformer struct {
	jpegQuality int
}

func (t govipsTransformer) Transform(ctx context.Context, kind domain.Conversion, format domain.Format, input []byte) (domain.ConvertedImage, error) {
	select {
	case <-ctx.Done():
		return domain.ConvertedImage{}, ctx.Err()
	default:
	}

	target, err := outputFormat(kind, format)
	if err != nil {
		return domain.ConvertedImage{}, err
	}

	switch vips.DetermineImageType(input) {
	case vips.ImageTypeJPEG, vips.ImageTypePNG:
	default:
		return domain.ConvertedImage{}, fmt.Errorf("%w: unsupported container", domain.ErrDecode)
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return domain.ConvertedImage{}, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	defer img.Close()

	switch kind {
	case domain.ConversionJPEG:
		if img.HasAlpha() {
			err = img.Flatten(&vips.Color{R: 255, G: 255, B: 255})
		}
	case domain.ConversionGrayscale:
		err = img.ToColorSpace(vips.InterpretationBW)
		if err == nil && img.HasAlpha() {
			err = img.ExtractBand(0, 1)
		}
	case domain.ConversionMirror:
		err = img.Flip(vips.DirectionHorizontal)
	}
	if err != nil {
		return domain.ConvertedImage{}, fmt.Errorf("apply %s: %w", kind, err)
	}

	data, err := exportGovipsImage(img, target, t.jpegQuality)
	if err != nil {
		return domain.ConvertedImage{}, err
	}

	return domain.ConvertedImage{
		Data:   data,
		Format: target,
		Width:  img.Width(),
		Height: img.Height(),
	}, nil
}

func exportGovipsImage(img *vips.ImageRef, format domain.Format, quality int) ([]byte, error) {
	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg: %w", domain.ErrEncode, err)
		}
		return data, nil
	case domain.FormatPNG:
		data, _, err := img.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("%w: png: %w", domain.ErrEncode, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unsupported output format %s", domain.ErrEncode, format)
	}
}
