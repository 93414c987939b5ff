package storage

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStorage implements Storage using an Azure Blob Storage container.
type AzureStorage struct {
	client    *azblob.Client
	container string
}

// NewAzureStorage connects with a storage-account connection string and
// creates the container when it does not exist yet.
func NewAzureStorage(ctx context.Context, connectionString, container string) (*AzureStorage, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	_, err = client.CreateContainer(ctx, container, nil)
	switch {
	case err == nil:
		log.Printf("storage: created container %q", container)
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
	default:
		return nil, fmt.Errorf("create container %q: %w", container, err)
	}

	return &AzureStorage{client: client, container: container}, nil
}

// Upload writes reader as a block blob named key, replacing an existing blob of the same name.
func (s *AzureStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.UploadStream(ctx, s.container, key, reader, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload blob %q (%d bytes): %w", key, size, err)
	}
	return s.blobURL(key), nil
}

// Delete removes the blob named key.
func (s *AzureStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteBlob(ctx, s.container, key, nil); err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}

func (s *AzureStorage) blobURL(key string) string {
	return s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(key).URL()
}
