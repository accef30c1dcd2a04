//go:build !govips || !cgo

package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPNGIsByteIdenticalForPNGSource(t *testing.T) {
	source := buildTestPNG(t, 64, 40)

	out, err := ToPNG(domain.FormatPNG, source)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPNG, out.Format)
	assert.Equal(t, source, out.Data)
}

func TestBackendIsStdlib(t *testing.T) {
	assert.Equal(t, "stdlib", Backend())
}

func TestToGrayscaleUsesStraightColourOfTranslucentPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 128})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 0, B: 0, A: 0})
	img.SetNRGBA(2, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := ToGrayscale(domain.FormatPNG, buf.Bytes())
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	gray, ok := decoded.(*image.Gray)
	require.True(t, ok, "expected single-channel output, got %T", decoded)
	assert.Equal(t, []uint8{255, 60, 18}, gray.Pix[:3])
}
