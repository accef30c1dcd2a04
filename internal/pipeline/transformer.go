package pipeline

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixelconv/internal/domain"
)

const DefaultJPEGQuality = 75

// Transformer decodes an image, applies exactly one conversion and encodes
// the result.
type Transformer interface {
	Transform(ctx context.Context, kind domain.Conversion, format domain.Format, input []byte) (domain.ConvertedImage, error)
}

type Options struct {
	JPEGQuality int
}

// New returns the transformer backend selected at build time.
func New(opts Options) (Transformer, error) {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	return newTransformer(opts)
}

// outputFormat is the conversion policy. jpeg and png pin their target
// format; grayscale and mirror re-encode in the declared input format.
func outputFormat(kind domain.Conversion, declared domain.Format) (domain.Format, error) {
	switch kind {
	case domain.ConversionJPEG:
		return domain.FormatJPEG, nil
	case domain.ConversionPNG:
		return domain.FormatPNG, nil
	case domain.ConversionGrayscale, domain.ConversionMirror:
		return domain.ParseFormat(string(declared))
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownConversion, kind)
	}
}

func ToJPEG(format domain.Format, input []byte) (domain.ConvertedImage, error) {
	return transformDefault(domain.ConversionJPEG, format, input)
}

func ToGrayscale(format domain.Format, input []byte) (domain.ConvertedImage, error) {
	return transformDefault(domain.ConversionGrayscale, format, input)
}

func ToMirror(format domain.Format, input []byte) (domain.ConvertedImage, error) {
	return transformDefault(domain.ConversionMirror, format, input)
}

func ToPNG(format domain.Format, input []byte) (domain.ConvertedImage, error) {
	return transformDefault(domain.ConversionPNG, format, input)
}

func transformDefault(kind domain.Conversion, format domain.Format, input []byte) (domain.ConvertedImage, error) {
	t, err := New(Options{})
	if err != nil {
		return domain.ConvertedImage{}, err
	}
	return t.Transform(context.Background(), kind, format, input)
}
