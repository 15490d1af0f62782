// Package gcsfetch downloads extraction documents from Cloud Storage into per-vendor folders.
package gcsfetch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// ObjectStore is the slice of object storage the fetcher needs.
type ObjectStore interface {
	// Exists reports whether the object is present. A missing object is not an error.
	Exists(ctx context.Context, bucket, object string) (bool, error)

	// Download returns the object content.
	Download(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCSStore implements ObjectStore on a shared storage client.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a client using Application Default Credentials.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// NewGCSStoreWithClient wraps an existing client.
func NewGCSStoreWithClient(client *storage.Client) *GCSStore {
	return &GCSStore{client: client}
}

func (s *GCSStore) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat gs://%s/%s: %w", bucket, object, err)
	}
	return true, nil
}

func (s *GCSStore) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
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

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ ObjectStore = (*GCSStore)(nil)
