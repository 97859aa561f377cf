package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hatemjaber/image-resize-server/internal/apperr"
	"github.com/hatemjaber/image-resize-server/internal/logging"
	"github.com/hatemjaber/image-resize-server/internal/objstore"
	"github.com/hatemjaber/image-resize-server/internal/sizespec"
)

// VariantCleaner removes the cached derivatives of a key. The upload path
// runs it before new content is written under an existing key, so no
// derivative outlives its original.
type VariantCleaner struct {
	store  objstore.Gateway
	bucket string
	logger logging.Logger
}

func NewVariantCleaner(store objstore.Gateway, bucket string, logger logging.Logger) *VariantCleaner {
	return &VariantCleaner{store: store, bucket: bucket, logger: logger.With("module", "variant_cleanup")}
}

// Cleanup deletes every variant of key. It tries one batch delete first and
// falls back to per-key deletes when the backend rejects the batch. A key
// without variants is a no-op.
func (c *VariantCleaner) Cleanup(ctx context.Context, key string) error {
	listed, err := c.store.List(ctx, c.bucket, key+"_")
	if err != nil {
		return apperr.Internal(apperr.CodeCleanupFailed, "failed to clean up variants", err).With("key", key)
	}

	variants := variantsOf(key, listed)
	if len(variants) == 0 {
		return nil
	}

	err = c.store.DeleteMany(ctx, c.bucket, variants)
	if err == nil {
		c.logger.Info(ctx, "variants deleted", "key", key, "count", len(variants))
		return nil
	}
	c.logger.Warn(ctx, "batch delete rejected, deleting one by one", "key", key, "error", err)

	var errs []error
	for _, v := range variants {
		if err := c.store.Delete(ctx, c.bucket, v); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperr.Internal(apperr.CodeCleanupFailed, "failed to clean up variants", errors.Join(errs...)).With("key", key)
	}

	c.logger.Info(ctx, "variants deleted", "key", key, "count", len(variants))
	return nil
}

// variantsOf keeps the listed keys whose suffix starts with a normalized
// size segment, so an unrelated original named key+"_something" is never
// touched. Derivatives of a variant (key_WxH_WxH) count as variants too.
func variantsOf(key string, listed []string) []string {
	out := make([]string, 0, len(listed))
	for _, k := range listed {
		suffix, ok := strings.CutPrefix(k, key+"_")
		if !ok {
			continue
		}
		first, _, _ := strings.Cut(suffix, "_")
		if isNormalizedSize(first) {
			out = append(out, k)
		}
	}
	return out
}

func isNormalizedSize(v string) bool {
	s, err := sizespec.Parse(v)
	return err == nil && s.String() == v
}

// looksLikeVariant reports whether key has the shape of a VariantKey.
func looksLikeVariant(key string) bool {
	i := strings.LastIndex(key, "_")
	if i < 0 {
		return false
	}
	return isNormalizedSize(key[i+1:])
}
