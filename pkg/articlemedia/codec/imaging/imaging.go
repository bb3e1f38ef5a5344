package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	// Registers the webp decoder; jpeg/png/gif/tiff/bmp come with the
	// imaging library.
	_ "golang.org/x/image/webp"

	"github.com/pressmill/article-media/pkg/articlemedia"
)

// Codec implements articlemedia.ImageCodec on top of the imaging library
// for decoding/resizing and libwebp for webp output. Aspect ratio is
// preserved and sources are never upscaled.
type Codec struct{}

// New creates a new codec
func New() *Codec {
	return &Codec{}
}

// Bounds probes the source dimensions without decoding the full image
func (c *Codec) Bounds(src []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", articlemedia.ErrDecodeFailed, err)
	}
	return cfg.Width, cfg.Height, nil
}

// ResizeAndEncode decodes the source, scales it down to at most maxWidth
// and re-encodes it in the requested format.
func (c *Codec) ResizeAndEncode(src []byte, maxWidth int, format articlemedia.Format, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", articlemedia.ErrDecodeFailed, err)
	}

	if width := img.Bounds().Dx(); width > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch format {
	case articlemedia.FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("jpeg encode: %w", err)
		}
	case articlemedia.FormatWebP:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return nil, fmt.Errorf("webp encoder options: %w", err)
		}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("webp encode: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", articlemedia.ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}
