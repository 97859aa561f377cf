package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hatemjaber/image-resize-server/internal/apperr"
	"github.com/hatemjaber/image-resize-server/internal/imaging"
	"github.com/hatemjaber/image-resize-server/internal/logging"
	"github.com/hatemjaber/image-resize-server/internal/objstore"
	"github.com/hatemjaber/image-resize-server/internal/sizespec"
)

const meterName = "github.com/hatemjaber/image-resize-server/internal/server/services"

// VariantKey is the store key of the derivative of key bounded by size.
func VariantKey(key string, size sizespec.Size) string {
	return key + "_" + size.String()
}

type cacheMetrics struct {
	lookups metric.Int64Counter
	resize  metric.Float64Histogram
}

func newCacheMetrics() cacheMetrics {
	meter := otel.Meter(meterName)
	// the global provider hands out no-op instruments until an SDK is installed
	lookups, _ := meter.Int64Counter("resize_cache.lookups",
		metric.WithDescription("Variant lookups by result (hit or miss)."))
	resize, _ := meter.Float64Histogram("resize_cache.resize.duration",
		metric.WithDescription("Time spent producing a variant on a miss."),
		metric.WithUnit("s"))
	return cacheMetrics{lookups: lookups, resize: resize}
}

// ResizeCache returns resized derivatives of originals, storing each one
// under its VariantKey so later requests skip the resize.
//
// There is no in-process state: two concurrent misses on the same variant
// both resize and both write identical bytes.
type ResizeCache struct {
	store   objstore.Gateway
	bucket  string
	resizer imaging.Resizer
	logger  logging.Logger
	metrics cacheMetrics
}

func NewResizeCache(store objstore.Gateway, bucket string, resizer imaging.Resizer, logger logging.Logger) *ResizeCache {
	return &ResizeCache{
		store:   store,
		bucket:  bucket,
		resizer: resizer,
		logger:  logger.With("module", "resize_cache"),
		metrics: newCacheMetrics(),
	}
}

// GetOrCreate returns the stored variant of key for size, or produces it
// from original. A stored variant is returned as is, without checking its
// dimensions. Only a missing variant counts as a miss; any other store
// failure is reported.
func (c *ResizeCache) GetOrCreate(ctx context.Context, original *objstore.Object, key string, size sizespec.Size) (*objstore.Object, error) {
	vk := VariantKey(key, size)

	cached, err := c.store.GetWithMetadata(ctx, c.bucket, vk)
	if err == nil {
		c.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
		c.logger.Debug(ctx, "variant hit", "key", vk)
		return cached, nil
	}
	if !errors.Is(err, objstore.ErrNotFound) {
		c.logger.Error(ctx, "variant lookup failed", "key", vk, "error", err)
		return nil, apperr.Internal(apperr.CodeStoreUnavailable, "object store unavailable", err)
	}
	c.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))

	start := time.Now()
	data, outType, err := c.resizer.Resize(ctx, original.Data, size)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrUnsupportedFormat):
			return nil, apperr.Wrap(apperr.KindClientInput, apperr.CodeCorruptImage, "stored image cannot be decoded", err).
				With("key", key)
		case errors.Is(err, imaging.ErrTooManyPixels):
			return nil, apperr.Wrap(apperr.KindClientInput, apperr.CodeImageTooLarge, "stored image too large to resize", err).
				With("key", key)
		}
		return nil, apperr.Internal(apperr.CodeUnknown, "resize failed", err)
	}
	c.metrics.resize.Record(ctx, time.Since(start).Seconds())

	contentType := original.ContentType
	if contentType == "" || contentType == "image/webp" && outType != contentType {
		contentType = outType
	}

	if err := c.store.Put(ctx, c.bucket, vk, data, contentType); err != nil {
		c.logger.Error(ctx, "variant write failed", "key", vk, "error", err)
		return nil, apperr.Internal(apperr.CodeStoreUnavailable, "object store unavailable", err)
	}

	c.logger.Info(ctx, "variant stored", "key", vk, "bytes", len(data))
	return &objstore.Object{Data: data, ContentType: contentType}, nil
}
