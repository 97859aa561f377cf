// Package objstore defines the object-store capability the image server
// depends on, together with an S3-compatible adapter and an in-process
// adapter for development and tests.
//
// Implementations must provide read-after-write consistency for a single
// key: a Put followed by a Get observes the written bytes. Put overwrites
// atomically from the caller's point of view.
package objstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested key does not exist.
var ErrNotFound = errors.New("object not found")

// Object is an object body together with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Gateway is the object-store capability. All methods are safe for
// concurrent use.
type Gateway interface {
	// Put creates or overwrites key.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// Get returns the body of key or ErrNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Exists reports whether key is present without transferring its body.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// GetWithMetadata returns body and content type of key or ErrNotFound.
	GetWithMetadata(ctx context.Context, bucket, key string) (*Object, error)

	// List returns every key starting with prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, bucket, key string) error

	// DeleteMany removes keys in as few requests as the backend allows.
	// It fails as a whole if the backend rejects the batch.
	DeleteMany(ctx context.Context, bucket string, keys []string) error

	// Ping verifies that bucket is reachable.
	Ping(ctx context.Context, bucket string) error
}
