package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryGateway keeps objects in process memory. Buckets are created on
// first write.
type MemoryGateway struct {
	mu      sync.RWMutex
	buckets map[string]map[string]Object
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{buckets: make(map[string]map[string]Object)}
}

func (m *MemoryGateway) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string]Object)
		m.buckets[bucket] = b
	}
	b[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (m *MemoryGateway) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.GetWithMetadata(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}

func (m *MemoryGateway) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.buckets[bucket][key]
	return ok, nil
}

func (m *MemoryGateway) GetWithMetadata(ctx context.Context, bucket, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return &Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}, nil
}

func (m *MemoryGateway) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryGateway) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.buckets[bucket], key)
	return nil
}

func (m *MemoryGateway) DeleteMany(ctx context.Context, bucket string, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.buckets[bucket], k)
	}
	return nil
}

func (m *MemoryGateway) Ping(ctx context.Context, bucket string) error {
	return ctx.Err()
}

var _ Gateway = (*MemoryGateway)(nil)
