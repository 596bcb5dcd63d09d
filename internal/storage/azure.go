package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// AzureStore stores objects in an Azure Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	container string
	expiry    time.Duration
}

// NewAzureStore creates a store authenticated with an account key.
func NewAzureStore(opts Options) (*AzureStore, error) {
	if opts.AzureAccountName == "" || opts.AzureAccountKey == "" || opts.AzureContainer == "" {
		return nil, fmt.Errorf("Azure config is incomplete: AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY and AZURE_CONTAINER are required")
	}
	cred, err := azblob.NewSharedKeyCredential(opts.AzureAccountName, opts.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", opts.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client, container: opts.AzureContainer, expiry: opts.LinkExpiry}, nil
}

// Put implements domain.BlobStore.
func (s *AzureStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.UploadBuffer(ctx, s.container, key, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", s.container, key, err)
	}
	return nil
}

// URL implements domain.BlobStore with a read-only SAS link.
func (s *AzureStore) URL(_ context.Context, key string) (string, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(key)
	u, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(s.expiry), nil)
	if err != nil {
		return "", fmt.Errorf("generate SAS URL for %s/%s: %w", s.container, key, err)
	}
	return u, nil
}
