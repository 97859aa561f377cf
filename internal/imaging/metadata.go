package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// maxEXIFValue drops oversized values such as maker notes and thumbnails.
const maxEXIFValue = 256

// Metadata describes an uploaded image.
type Metadata struct {
	Width  int               `json:"width"`
	Height int               `json:"height"`
	Format string            `json:"format"`
	EXIF   map[string]string `json:"exif,omitempty"`
}

// Inspect decodes the header of data and collects embedded EXIF tags.
// Missing or broken EXIF is not an error. Images above MaxPixels are
// rejected with ErrTooManyPixels.
func Inspect(data []byte) (*Metadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	m := &Metadata{Width: cfg.Width, Height: cfg.Height, Format: format}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrUnsupportedFormat)
	}
	if err := checkPixels(cfg); err != nil {
		return nil, err
	}

	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		w := exifWalker{}
		_ = x.Walk(w)
		if len(w) > 0 {
			m.EXIF = w
		}
	}
	return m, nil
}

type exifWalker map[string]string

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	v := tag.String()
	if len(v) > maxEXIFValue {
		return nil
	}
	w[string(name)] = v
	return nil
}
