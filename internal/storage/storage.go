// Package storage implements domain.BlobStore on S3-compatible storage,
// Google Cloud Storage, Azure Blob Storage and the local filesystem.
package storage

import (
	"context"
	"fmt"
	"time"

	"dynquery/internal/domain"
)

// DefaultLinkExpiry is the lifetime of presigned retrieval links.
const DefaultLinkExpiry = time.Hour

// Options selects and configures a store.
type Options struct {
	Backend    string // s3, gcs, azure, local
	LinkExpiry time.Duration

	S3KeyID    string
	S3Secret   string
	S3Endpoint string
	S3Region   string
	S3Bucket   string

	GCSBucket  string
	GCSKeyFile string

	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string

	LocalDir     string
	LocalBaseURL string
}

// New creates the store selected by opts.Backend.
func New(ctx context.Context, opts Options) (domain.BlobStore, error) {
	if opts.LinkExpiry <= 0 {
		opts.LinkExpiry = DefaultLinkExpiry
	}
	switch opts.Backend {
	case "s3":
		return NewS3Store(opts)
	case "gcs":
		return NewGCSStore(ctx, opts)
	case "azure":
		return NewAzureStore(opts)
	case "local", "":
		return NewLocalStore(opts.LocalDir, opts.LocalBaseURL)
	default:
		return nil, fmt.Errorf("unsupported export storage %q", opts.Backend)
	}
}
