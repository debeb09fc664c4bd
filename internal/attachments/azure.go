package attachments

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStorage keeps attachments as block blobs in one container.
type AzureStorage struct {
	client    *azblob.Client
	container string
}

func NewAzureStorage(connectionString, container string) (*AzureStorage, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azblob client: %w", err)
	}
	return &AzureStorage{client: client, container: container}, nil
}

func (s *AzureStorage) Upload(ctx context.Context, file File) (Uploaded, error) {
	src, err := file.Open()
	if err != nil {
		return Uploaded{}, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer src.Close()

	name := objectName(file.Name)
	_, err = s.client.UploadStream(ctx, s.container, name, src, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(file.MimeType)},
	})
	if err != nil {
		return Uploaded{}, fmt.Errorf("upload blob: %w", err)
	}

	return Uploaded{URL: strings.TrimSuffix(s.client.URL(), "/") + "/" + s.container + "/" + name}, nil
}

func (s *AzureStorage) Delete(ctx context.Context, rawURL, resourceType string) error {
	name, err := s.blobName(rawURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteBlob(ctx, s.container, name, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *AzureStorage) blobName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid attachment url %q: %w", rawURL, err)
	}
	prefix := "/" + s.container + "/"
	idx := strings.Index(u.Path, prefix)
	if idx < 0 {
		return "", fmt.Errorf("attachment url %q is outside container %s", rawURL, s.container)
	}
	return u.Path[idx+len(prefix):], nil
}
