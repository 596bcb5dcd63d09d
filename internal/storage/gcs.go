package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	expiry time.Duration
}

// NewGCSStore creates a store authenticated with a service account key
// file.
func NewGCSStore(ctx context.Context, opts Options) (*GCSStore, error) {
	if opts.GCSBucket == "" || opts.GCSKeyFile == "" {
		return nil, fmt.Errorf("GCS config is incomplete: GCS_BUCKET and GCS_KEY_FILE are required")
	}
	client, err := storage.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, opts.GCSKeyFile))
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: opts.GCSBucket, expiry: opts.LinkExpiry}, nil
}

// Put implements domain.BlobStore.
func (s *GCSStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// URL implements domain.BlobStore with a signed GET link.
func (s *GCSStore) URL(_ context.Context, key string) (string, error) {
	u, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.expiry),
	})
	if err != nil {
		return "", fmt.Errorf("sign gs://%s/%s: %w", s.bucket, key, err)
	}
	return u, nil
}
