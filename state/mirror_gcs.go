package state

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSMirror stores the state document in a Google Cloud Storage bucket.
type GCSMirror struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSMirror uses application default credentials.
func NewGCSMirror(ctx context.Context, bucket, prefix string) (*GCSMirror, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSMirror{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (m *GCSMirror) Put(ctx context.Context, name string, data []byte) error {
	w := m.client.Bucket(m.bucket).Object(m.prefix + name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed: %w", err)
	}
	return nil
}

func (m *GCSMirror) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := m.client.Bucket(m.bucket).Object(m.prefix + name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs get failed for %s: %w", name, err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (m *GCSMirror) Close() error {
	return m.client.Close()
}
