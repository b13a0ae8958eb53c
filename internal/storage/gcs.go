package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCSBackend stores each key as an object in a Google Cloud Storage bucket.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
type GCSBackend struct {
	client   *gcs.Client
	bucket   string
	prefix   string
	maxBytes int64
}

// NewGCSBackend creates a storage client for bucket. Objects are named prefix/key.json.
func NewGCSBackend(ctx context.Context, bucket, prefix string, maxBytes int64) (*GCSBackend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs backend: bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSBackend{client: client, bucket: bucket, prefix: prefix, maxBytes: maxBytes}, nil
}

// Close releases the storage client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}

func (b *GCSBackend) object(key string) *gcs.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(path.Join(b.prefix, key+".json"))
}

// URI returns the gs:// location of key, for logging.
func (b *GCSBackend) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", b.bucket, path.Join(b.prefix, key+".json"))
}

// Get implements Backend.
func (b *GCSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// Set implements Backend.
func (b *GCSBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := checkQuota(b.maxBytes, value); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.object(key).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Remove implements Backend.
func (b *GCSBackend) Remove(ctx context.Context, key string) error {
	err := b.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object: %w", err)
	}
	return nil
}

var _ Backend = (*GCSBackend)(nil)
