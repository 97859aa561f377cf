package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hatemjaber/image-resize-server/internal/apperr"
	"github.com/hatemjaber/image-resize-server/internal/imaging"
)

// DefaultMaxFileSize bounds a single uploaded file.
const DefaultMaxFileSize = 10 * 1024 * 1024

// allowedImageTypes is the whitelist of sniffed content types.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// UploadLimits constrains uploads.
type UploadLimits struct {
	MaxFileSize int64
	MaxFiles    int
}

// UploadFile is one file of an upload request.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult describes a stored original.
type UploadResult struct {
	Key          string            `json:"key"`
	Reference    string            `json:"reference"`
	OriginalName string            `json:"originalName"`
	ContentType  string            `json:"contentType"`
	Size         int64             `json:"size"`
	Metadata     *imaging.Metadata `json:"metadata"`
}

type preparedFile struct {
	name        string
	contentType string
	data        []byte
	meta        *imaging.Metadata
}

// prepare validates f and extracts its metadata. The stored content type is
// derived from the decoded format, not from what the client declared.
func (l UploadLimits) prepare(f UploadFile) (*preparedFile, error) {
	reject := func(code, msg string) *apperr.Error {
		return apperr.ClientInput(code, msg).With("file", f.Name)
	}

	if len(f.Data) == 0 {
		return nil, reject(apperr.CodeEmptyFile, "file is empty")
	}
	maxSize := l.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if int64(len(f.Data)) > maxSize {
		return nil, reject(apperr.CodeFileTooLarge, "file too large")
	}

	declared := normalizeMime(f.ContentType)
	if !strings.HasPrefix(declared, "image/") {
		return nil, reject(apperr.CodeUnsupportedType, "unsupported file type").With("contentType", declared)
	}

	// http.DetectContentType does not know TIFF and reports octet-stream;
	// the decoder below has the final word for that case.
	sniffed := normalizeMime(http.DetectContentType(f.Data))
	if !allowedImageTypes[sniffed] && sniffed != "application/octet-stream" {
		return nil, reject(apperr.CodeUnsupportedType, "unsupported file type").With("contentType", sniffed)
	}

	meta, err := imaging.Inspect(f.Data)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrUnsupportedFormat):
			return nil, reject(apperr.CodeCorruptImage, "image cannot be decoded")
		case errors.Is(err, imaging.ErrTooManyPixels):
			return nil, reject(apperr.CodeImageTooLarge, "image dimensions too large").
				With("maxPixels", fmt.Sprint(imaging.MaxPixels))
		}
		return nil, fmt.Errorf("inspect %s: %w", f.Name, err)
	}

	ct := imaging.ContentTypeOf(meta.Format)
	if !allowedImageTypes[ct] {
		return nil, reject(apperr.CodeUnsupportedType, "unsupported file type").With("contentType", ct)
	}

	return &preparedFile{name: f.Name, contentType: ct, data: f.Data, meta: meta}, nil
}

func normalizeMime(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.Index(v, ";"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}
