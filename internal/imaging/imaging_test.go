package imaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/hatemjaber/image-resize-server/internal/sizespec"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(w, h)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(w, h), nil))
	return buf.Bytes()
}

// pngHeader returns a PNG that declares w x h RGBA pixels but carries only
// the signature and an IHDR chunk.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 6, 0, 0, 0) // 8-bit RGBA, no interlace

	buf.Write(binary.BigEndian.AppendUint32(nil, 13))
	buf.Write(chunk)
	buf.Write(binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(chunk)))
	return buf.Bytes()
}

func dims(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

func TestFitInside(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, maxW, maxH int
		wantW, wantH           int
	}{
		{"already fits", 200, 150, 800, 600, 200, 150},
		{"exact", 400, 300, 400, 300, 400, 300},
		{"width bound", 800, 600, 400, 400, 400, 300},
		{"height bound", 600, 800, 400, 400, 300, 400},
		{"one axis over", 1000, 100, 500, 500, 500, 50},
		{"extreme ratio", 5000, 1, 100, 100, 100, 1},
		{"square into rect", 1000, 1000, 300, 200, 200, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitInside(tt.srcW, tt.srcH, tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestDrawResizer_DownscalesPreservingAspect(t *testing.T) {
	r := NewDrawResizer()
	src := encodePNG(t, 200, 150)

	out, ct, err := r.Resize(context.Background(), src, sizespec.MustParse("100x100"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	w, h, format := dims(t, out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 75, h)
	assert.Equal(t, "png", format)
}

func TestDrawResizer_NeverUpscales(t *testing.T) {
	r := NewDrawResizer()
	src := encodePNG(t, 200, 150)

	out, ct, err := r.Resize(context.Background(), src, sizespec.MustParse("800x600"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	w, h, _ := dims(t, out)
	assert.LessOrEqual(t, w, 200)
	assert.LessOrEqual(t, h, 150)
}

func TestDrawResizer_KeepsFormat(t *testing.T) {
	r := NewDrawResizer()

	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, gradient(64, 64), nil))
	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, gradient(64, 64)))

	tests := []struct {
		name   string
		data   []byte
		ct     string
		format string
	}{
		{"jpeg", encodeJPEG(t, 64, 64), "image/jpeg", "jpeg"},
		{"gif", gifBuf.Bytes(), "image/gif", "gif"},
		{"bmp", bmpBuf.Bytes(), "image/bmp", "bmp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ct, err := r.Resize(context.Background(), tt.data, sizespec.MustParse("32"))
			require.NoError(t, err)
			assert.Equal(t, tt.ct, ct)
			w, h, format := dims(t, out)
			assert.Equal(t, 32, w)
			assert.Equal(t, 32, h)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestDrawResizer_Deterministic(t *testing.T) {
	r := NewDrawResizer()
	src := encodeJPEG(t, 120, 90)

	a, _, err := r.Resize(context.Background(), src, sizespec.MustParse("40x40"))
	require.NoError(t, err)
	b, _, err := r.Resize(context.Background(), src, sizespec.MustParse("40x40"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDrawResizer_RejectsGarbage(t *testing.T) {
	r := NewDrawResizer()
	_, _, err := r.Resize(context.Background(), []byte("definitely not an image"), sizespec.MustParse("10"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDrawResizer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewDrawResizer().Resize(ctx, encodePNG(t, 50, 50), sizespec.MustParse("10"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspect(t *testing.T) {
	m, err := Inspect(encodeJPEG(t, 33, 21))
	require.NoError(t, err)
	assert.Equal(t, 33, m.Width)
	assert.Equal(t, 21, m.Height)
	assert.Equal(t, "jpeg", m.Format)
	assert.Empty(t, m.EXIF)

	_, err = Inspect([]byte("GIF89a-truncated"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPixelLimit(t *testing.T) {
	bomb := pngHeader(100000, 100000)

	_, err := Inspect(bomb)
	assert.ErrorIs(t, err, ErrTooManyPixels)

	_, _, err = NewDrawResizer().Resize(context.Background(), bomb, sizespec.MustParse("10"))
	assert.ErrorIs(t, err, ErrTooManyPixels)

	m, err := Inspect(pngHeader(16383, 16383))
	require.NoError(t, err, "the limit itself is accepted")
	assert.Equal(t, 16383, m.Width)
}

func TestContentTypeOf(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeOf("jpeg"))
	assert.Equal(t, "image/webp", ContentTypeOf("webp"))
	assert.Equal(t, "image/tiff", ContentTypeOf("tiff"))
	assert.Equal(t, "application/octet-stream", ContentTypeOf("svg"))
}
