// Package storage provides the key/value media the local store persists its
// document into: a directory of files, a GCS bucket or process memory.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the value would exceed the backend quota.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// Backend stores opaque values under string keys.
// Implementations replace a value in full on every Set.
type Backend interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

func checkQuota(maxBytes int64, value []byte) error {
	if maxBytes > 0 && int64(len(value)) > maxBytes {
		return ErrQuotaExceeded
	}
	return nil
}
