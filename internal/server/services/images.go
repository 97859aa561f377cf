package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hatemjaber/image-resize-server/internal/apperr"
	"github.com/hatemjaber/image-resize-server/internal/imaging"
	"github.com/hatemjaber/image-resize-server/internal/logging"
	"github.com/hatemjaber/image-resize-server/internal/objstore"
	"github.com/hatemjaber/image-resize-server/internal/sizespec"
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// KeyCodec turns storage keys into reference tokens and back.
type KeyCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// ImageService serves, uploads and replaces images. It is the single
// entry point the transport layer talks to.
type ImageService struct {
	store   objstore.Gateway
	bucket  string
	codec   KeyCodec
	cache   *ResizeCache
	cleaner *VariantCleaner
	limits  UploadLimits
	logger  logging.Logger

	now   func() time.Time
	newID func() string
}

func NewImageService(store objstore.Gateway, bucket string, codec KeyCodec, resizer imaging.Resizer,
	limits UploadLimits, logger logging.Logger) *ImageService {
	return &ImageService{
		store:   store,
		bucket:  bucket,
		codec:   codec,
		cache:   NewResizeCache(store, bucket, resizer, logger),
		cleaner: NewVariantCleaner(store, bucket, logger),
		limits:  limits,
		logger:  logger.With("module", "images"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// NewStorageKey returns a fresh key "{prefix}/{unixmillis}-{uuid}".
func (s *ImageService) NewStorageKey(prefix string) string {
	return fmt.Sprintf("%s/%d-%s", prefix, s.now().UnixMilli(), s.newID())
}

// ResolveReference decodes a reference token into its storage key.
func (s *ImageService) ResolveReference(token string) (string, error) {
	if token == "" {
		return "", apperr.ClientInput(apperr.CodeKeyMissing, "missing reference")
	}
	key, err := s.codec.Decrypt(token)
	if err != nil {
		return "", apperr.Wrap(apperr.KindClientInput, apperr.CodeDecryptionFailed, "decryption failed", err)
	}
	return key, nil
}

// Reference wraps key into a reference token.
func (s *ImageService) Reference(key string) (string, error) {
	token, err := s.codec.Encrypt(key)
	if err != nil {
		return "", apperr.Internal(apperr.CodeUnknown, "failed to issue reference", err)
	}
	return token, nil
}

// ValidatePrefix checks the first path segment of a plain key.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return apperr.ClientInput(apperr.CodePrefixMissing, "prefix is required")
	}
	if !prefixPattern.MatchString(prefix) {
		return apperr.ClientInput(apperr.CodePrefixInvalid, "prefix must match ^[A-Za-z0-9_-]+$").With("prefix", prefix)
	}
	return nil
}

// PlainKey builds and validates a storage key from a prefix and the rest of
// the request path.
func PlainKey(prefix, rest string) (string, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return "", err
	}
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", apperr.ClientInput(apperr.CodeKeyMissing, "key is required").With("prefix", prefix)
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", apperr.ClientInput(apperr.CodeKeyInvalid, "key contains an invalid path segment").With("prefix", prefix)
		}
	}
	return prefix + "/" + rest, nil
}

// ParseSize converts a size query parameter into bounds.
func ParseSize(raw string) (sizespec.Size, error) {
	size, err := sizespec.Parse(raw)
	if err == nil {
		return size, nil
	}

	code := apperr.CodeSizeInvalidFormat
	if errors.Is(err, sizespec.ErrOutOfBounds) {
		code = apperr.CodeSizeOutOfBounds
	}
	ae := apperr.ClientInput(code, "invalid size parameter").With("size", raw)
	var se *sizespec.Error
	if errors.As(err, &se) {
		ae = ae.WithCause(se.Reason)
	}
	return sizespec.Size{}, ae
}

// Fetch returns the image stored under key, resized when rawSize is set.
// Variant keys are served as stored but never resized.
func (s *ImageService) Fetch(ctx context.Context, key, rawSize string) (*objstore.Object, error) {
	var size sizespec.Size
	if rawSize != "" {
		var err error
		if size, err = ParseSize(rawSize); err != nil {
			return nil, err
		}
		if looksLikeVariant(key) {
			return nil, apperr.ClientInput(apperr.CodeKeyInvalid, "a resized variant cannot be resized again").With("key", key)
		}
	}

	original, err := s.store.GetWithMetadata(ctx, s.bucket, key)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			return nil, apperr.NotFound("image not found")
		}
		s.logger.Error(ctx, "original lookup failed", "key", key, "error", err)
		return nil, apperr.Internal(apperr.CodeStoreUnavailable, "object store unavailable", err)
	}

	if rawSize == "" {
		return original, nil
	}
	return s.cache.GetOrCreate(ctx, original, key, size)
}

// Upload stores a batch of files under freshly generated keys in prefix.
//
// The batch is all-or-nothing. Every file is validated before anything is
// written; if a write fails, the keys this batch already wrote are removed.
func (s *ImageService) Upload(ctx context.Context, prefix string, files []UploadFile) ([]UploadResult, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperr.ClientInput(apperr.CodeNoFile, "no file provided")
	}
	if s.limits.MaxFiles > 0 && len(files) > s.limits.MaxFiles {
		return nil, apperr.ClientInput(apperr.CodeTooManyFiles, "too many files").
			With("max", fmt.Sprint(s.limits.MaxFiles))
	}

	prepared := make([]*preparedFile, len(files))
	g := new(errgroup.Group)
	for i, f := range files {
		g.Go(func() error {
			p, err := s.limits.prepare(f)
			if err != nil {
				return err
			}
			prepared[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]UploadResult, len(prepared))
	written := make([]bool, len(prepared))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range prepared {
		g.Go(func() error {
			key := s.NewStorageKey(prefix)
			res, err := s.store1(gctx, key, p)
			if err != nil {
				return err
			}
			written[i] = true
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.rollback(context.WithoutCancel(ctx), results, written)
		return nil, err
	}

	s.logger.Info(ctx, "batch stored", "prefix", prefix, "files", len(results))
	return results, nil
}

// Replace overwrites an existing image, dropping its variants first.
func (s *ImageService) Replace(ctx context.Context, key string, file UploadFile) (*UploadResult, error) {
	if looksLikeVariant(key) {
		return nil, apperr.ClientInput(apperr.CodeKeyInvalid, "key collides with a resized variant").With("key", key)
	}
	p, err := s.limits.prepare(file)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.Exists(ctx, s.bucket, key)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeStoreUnavailable, "object store unavailable", err)
	}
	if !exists {
		return nil, apperr.NotFound("image not found")
	}
	return s.store1(ctx, key, p)
}

// Delete removes the image stored under key together with its variants.
func (s *ImageService) Delete(ctx context.Context, key string) error {
	if err := s.cleaner.Cleanup(ctx, key); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.bucket, key); err != nil {
		return apperr.Internal(apperr.CodeStoreUnavailable, "object store unavailable", err)
	}
	s.logger.Info(ctx, "image deleted", "key", key)
	return nil
}

// Ping reports whether the backing bucket is reachable.
func (s *ImageService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx, s.bucket); err != nil {
		return apperr.Internal(apperr.CodeHealthCheckFailed, "health check failed", err)
	}
	return nil
}

// store1 runs the per-file write pipeline: cleanup, put, reference.
func (s *ImageService) store1(ctx context.Context, key string, p *preparedFile) (*UploadResult, error) {
	if err := s.cleaner.Cleanup(ctx, key); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, s.bucket, key, p.data, p.contentType); err != nil {
		s.logger.Error(ctx, "original write failed", "key", key, "error", err)
		return nil, apperr.Internal(apperr.CodeStoreUnavailable, "object store unavailable", err)
	}

	ref, err := s.Reference(key)
	if err != nil {
		_ = s.store.Delete(context.WithoutCancel(ctx), s.bucket, key)
		return nil, err
	}

	return &UploadResult{
		Key:          key,
		Reference:    ref,
		OriginalName: p.name,
		ContentType:  p.contentType,
		Size:         int64(len(p.data)),
		Metadata:     p.meta,
	}, nil
}

func (s *ImageService) rollback(ctx context.Context, results []UploadResult, written []bool) {
	for i, ok := range written {
		if !ok {
			continue
		}
		if err := s.store.Delete(ctx, s.bucket, results[i].Key); err != nil {
			s.logger.Error(ctx, "rollback delete failed", "key", results[i].Key, "error", err)
		}
	}
}
