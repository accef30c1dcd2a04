package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixelconv/internal/domain"
	"golang.org/x/image/draw"
)

type stdlibTransformer struct {
	jpegQuality int
}

func (t stdlibTransformer) Transform(ctx context.Context, kind domain.Conversion, format domain.Format, input []byte) (domain.ConvertedImage, error) {
	select {
	case <-ctx.Done():
		return domain.ConvertedImage{}, ctx.Err()
	default:
	}

	target, err := outputFormat(kind, format)
	if err != nil {
		return domain.ConvertedImage{}, err
	}

	src, srcFormat, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return domain.ConvertedImage{}, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	if srcFormat != "jpeg" && srcFormat != "png" {
		return domain.ConvertedImage{}, fmt.Errorf("%w: unsupported container %s", domain.ErrDecode, srcFormat)
	}

	var out image.Image
	switch kind {
	case domain.ConversionJPEG:
		out = flattenOpaque(src)
	case domain.ConversionGrayscale:
		out = toGray(src)
	case domain.ConversionMirror:
		out = imaging.FlipH(src)
	default:
		out = src
	}

	data, err := encodeImage(out, target, t.jpegQuality)
	if err != nil {
		return domain.ConvertedImage{}, err
	}

	bounds := out.Bounds()
	return domain.ConvertedImage{
		Data:   data,
		Format: target,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// flattenOpaque composites src over white so the result has no alpha channel.
// Fully transparent pixels come out white; the colour stored under them is
// not kept.
func flattenOpaque(src image.Image) image.Image {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	return dst
}

// toGray takes the ITU-R 601-2 luma of each pixel's straight
// (non-premultiplied) colour and drops alpha.
func toGray(src image.Image) *image.Gray {
	nrgba := imaging.Clone(src)
	bounds := nrgba.Bounds()
	dst := image.NewGray(bounds)
	for y := 0; y < bounds.Dy(); y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+bounds.Dx()*4]
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b := uint32(row[x*4]), uint32(row[x*4+1]), uint32(row[x*4+2])
			dst.Pix[y*dst.Stride+x] = uint8((r*19595 + g*38470 + b*7471 + 1<<15) >> 16)
		}
	}
	return dst
}

func encodeImage(img image.Image, format domain.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case domain.FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("%w: jpeg: %w", domain.ErrEncode, err)
		}
	case domain.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("%w: png: %w", domain.ErrEncode, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported output format %s", domain.ErrEncode, format)
	}

	return buf.Bytes(), nil
}
