package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the container format an image is stored and served in.
type Format string

const (
	FormatJPEG Format = "JPEG"
	FormatPNG  Format = "PNG"
)

const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
)

// FormatFromFileName classifies an uploaded file by the final suffix of its
// base name. The suffix is matched case-sensitively.
func FormatFromFileName(name string) (Format, error) {
	ext := fileSuffix(name)
	switch ext {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%q %w", ext, ErrUnsupportedFormat)
	}
}

// ContentTypeFromFormat returns the MIME type served for format.
func ContentTypeFromFormat(format Format) (string, error) {
	switch format {
	case FormatJPEG:
		return ContentTypeJPEG, nil
	case FormatPNG:
		return ContentTypePNG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// ParseFormat validates a format value read back from storage or the wire.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatJPEG, FormatPNG:
		return Format(value), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, value)
	}
}

// Extension is the lowercase file extension used for object keys.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	default:
		return "bin"
	}
}

func (f Format) String() string {
	return string(f)
}

// fileSuffix mirrors the usual "last suffix of the base name" rule: a leading
// dot on its own (".png") does not start a suffix.
func fileSuffix(name string) string {
	base := filepath.Base(name)
	idx := strings.LastIndex(base, ".")
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return base[idx:]
}
