package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in memory. It is safe for concurrent use.
type MemoryBackend struct {
	mu       sync.RWMutex
	values   map[string][]byte
	maxBytes int64
}

// NewMemoryBackend creates an empty backend. maxBytes <= 0 disables the quota.
func NewMemoryBackend(maxBytes int64) *MemoryBackend {
	return &MemoryBackend{
		values:   make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

// Get implements Backend.
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to avoid external modifications
	return append([]byte(nil), v...), nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := checkQuota(b.maxBytes, value); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[key] = append([]byte(nil), value...)
	return nil
}

// Remove implements Backend.
func (b *MemoryBackend) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.values, key)
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
