package domain

import (
	"fmt"
	"strings"
)

// StoredImage is an uploaded image as persisted by the image store.
type StoredImage struct {
	ID     string
	Name   string
	Format Format
	Blob   []byte
}

// NewStoredImage validates the declared format before a record is built.
func NewStoredImage(id, name string, format Format, blob []byte) (StoredImage, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return StoredImage{}, err
	}
	return StoredImage{
		ID:     id,
		Name:   name,
		Format: format,
		Blob:   blob,
	}, nil
}

// ConvertedImage is the output of a single conversion.
type ConvertedImage struct {
	Data   []byte `json:"data"`
	Format Format `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Conversion selects one of the supported transforms. The values double as
// the gateway's route segments.
type Conversion string

const (
	ConversionJPEG      Conversion = "jpeg"
	ConversionPNG       Conversion = "png"
	ConversionGrayscale Conversion = "grayscale"
	ConversionMirror    Conversion = "mirror"
)

// Conversions lists every supported conversion in route order.
func Conversions() []Conversion {
	return []Conversion{ConversionJPEG, ConversionPNG, ConversionGrayscale, ConversionMirror}
}

func ParseConversion(value string) (Conversion, error) {
	switch c := Conversion(strings.ToLower(strings.TrimSpace(value))); c {
	case ConversionJPEG, ConversionPNG, ConversionGrayscale, ConversionMirror:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConversion, value)
	}
}

func (c Conversion) String() string {
	return string(c)
}
