// Package imaging resizes images and extracts their metadata. Resizing
// follows a fit-inside policy: aspect ratio is preserved and an image is
// never enlarged.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hatemjaber/image-resize-server/internal/sizespec"
)

var (
	// ErrUnsupportedFormat is returned for data no registered decoder accepts.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrTooManyPixels is returned for images whose declared dimensions
	// exceed MaxPixels.
	ErrTooManyPixels = errors.New("image exceeds pixel limit")
)

// MaxPixels bounds width*height of any image accepted or decoded. It equals
// 16383*16383.
const MaxPixels = 268402689

// DefaultJPEGQuality is used when re-encoding JPEG output.
const DefaultJPEGQuality = 90

// Resizer produces a derivative of an encoded image bounded by a size.
type Resizer interface {
	// Resize returns the encoded derivative and its content type.
	Resize(ctx context.Context, data []byte, bounds sizespec.Size) ([]byte, string, error)
}

// DrawResizer resamples with golang.org/x/image/draw. The output of a
// given input is byte-for-byte deterministic.
type DrawResizer struct {
	Kernel      draw.Interpolator
	JPEGQuality int
}

// NewDrawResizer returns a resizer using the Catmull-Rom kernel.
func NewDrawResizer() *DrawResizer {
	return &DrawResizer{Kernel: draw.CatmullRom, JPEGQuality: DefaultJPEGQuality}
}

// FitInside scales (srcW, srcH) down to fit (maxW, maxH), keeping the
// aspect ratio. Sources that already fit are returned unchanged.
func FitInside(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}
	scale := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	w := clamp(int(math.Round(float64(srcW)*scale)), 1, maxW)
	h := clamp(int(math.Round(float64(srcH)*scale)), 1, maxH)
	return w, h
}

func checkPixels(cfg image.Config) error {
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func (r *DrawResizer) Resize(ctx context.Context, data []byte, bounds sizespec.Size) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if err := checkPixels(cfg); err != nil {
		return nil, "", err
	}

	w, h := FitInside(cfg.Width, cfg.Height, bounds.Width, bounds.Height)
	if w == cfg.Width && h == cfg.Height {
		return data, ContentTypeOf(format), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	r.Kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return r.encode(dst, format)
}

func (r *DrawResizer) encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.JPEGQuality})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "tiff":
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		// png, and webp which x/image can only decode
		format = "png"
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), ContentTypeOf(format), nil
}

// ContentTypeOf maps an image.Decode format name to its MIME type.
func ContentTypeOf(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
