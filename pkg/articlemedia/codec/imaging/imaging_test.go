package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressmill/article-media/pkg/articlemedia"
)

// pngSource renders a small gradient and encodes it as PNG.
func pngSource(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestBounds(t *testing.T) {
	codec := New()

	w, h, err := codec.Bounds(pngSource(t, 640, 480))
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestBoundsRejectsGarbage(t *testing.T) {
	codec := New()

	_, _, err := codec.Bounds([]byte("definitely not an image"))
	assert.ErrorIs(t, err, articlemedia.ErrDecodeFailed)
}

func TestResizeAndEncodeScalesDown(t *testing.T) {
	codec := New()
	src := pngSource(t, 1000, 500)

	out, err := codec.ResizeAndEncode(src, 300, articlemedia.FormatJPEG, 80)
	require.NoError(t, err)

	w, h := decodeDims(t, out)
	assert.Equal(t, 300, w)
	assert.Equal(t, 150, h, "aspect ratio must be preserved")
}

func TestResizeAndEncodeNeverUpscales(t *testing.T) {
	codec := New()
	src := pngSource(t, 200, 100)

	out, err := codec.ResizeAndEncode(src, 1200, articlemedia.FormatJPEG, 80)
	require.NoError(t, err)

	w, h := decodeDims(t, out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestResizeAndEncodeRejectsUnknownFormat(t *testing.T) {
	codec := New()

	_, err := codec.ResizeAndEncode(pngSource(t, 100, 100), 50, "gif", 80)
	assert.ErrorIs(t, err, articlemedia.ErrUnsupportedFormat)
}

func TestResizeAndEncodeRejectsGarbage(t *testing.T) {
	codec := New()

	_, err := codec.ResizeAndEncode([]byte("garbage"), 300, articlemedia.FormatJPEG, 80)
	assert.ErrorIs(t, err, articlemedia.ErrDecodeFailed)
}
