package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(w, h, c)))
	return buf.Bytes()
}

func TestThumbnailFitsWithinBounds(t *testing.T) {
	data := pngOf(t, 600, 900, color.NRGBA{R: 200, A: 255})

	thumb, err := Thumbnail(data, 200, 300)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestThumbnailDoesNotUpscale(t *testing.T) {
	thumb, err := Thumbnail(pngOf(t, 50, 40, color.Black), 200, 300)
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
}

func TestFlattenFillsTransparency(t *testing.T) {
	img, err := NewFlattenProcessor(color.White).Process(imaging.New(4, 4, color.NRGBA{}))
	require.NoError(t, err)

	r, g, b, a := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Decode([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestPipelineStopsOnError(t *testing.T) {
	_, err := NewPipeline(0, NewFitProcessor(10, 10)).Encode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}
