package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobStorage reads card images uploaded to object storage.
type BlobStorage interface {
	GetImage(ctx context.Context, container, name string) (*Payload, error)
}

type blobDownloader interface {
	DownloadStream(ctx context.Context, containerName string, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

type azureStorage struct {
	client   blobDownloader
	maxBytes int64
}

// NewAzureStorage authenticates with a shared account key.
func NewAzureStorage(accountName, accountKey string, maxBytes int64) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{client: client, maxBytes: maxBytes}, nil
}

func (s *azureStorage) GetImage(ctx context.Context, container, name string) (*Payload, error) {
	container = strings.Trim(container, "/")
	name = strings.TrimPrefix(name, "/")
	if container == "" || name == "" {
		return nil, fmt.Errorf("blob container and name are required")
	}

	resp, err := s.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", container, name, err)
	}
	defer resp.Body.Close()

	if s.maxBytes > 0 && resp.ContentLength != nil && *resp.ContentLength > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, *resp.ContentLength)
	}

	data, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		return nil, err
	}

	declared := ""
	if resp.ContentType != nil {
		declared = *resp.ContentType
	}
	return &Payload{Data: data, ContentType: DetectContentType(data, declared)}, nil
}
