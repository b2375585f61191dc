package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	apperrors "go-roi-inspector/internal/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// blobClient is the part of *azblob.Client the store uses.
type blobClient interface {
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureBlobStore keeps templates in Azure Blob Storage. References have
// the form azblob://<container>/<blob path>.
type AzureBlobStore struct {
	client blobClient
}

// NewAzureBlobStore authenticates with a shared key. An empty endpoint
// means the public cloud endpoint of the account.
func NewAzureBlobStore(accountName, accountKey, endpoint string) (*AzureBlobStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("invalid azure storage credentials", err)
	}

	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create azure blob client", err)
	}

	return &AzureBlobStore{client: client}, nil
}

// ParseBlobRef splits azblob://container/path into its parts.
func ParseBlobRef(ref string) (container, blobName string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", apperrors.NewInvalidInputError(fmt.Sprintf("invalid blob reference %q", ref), err)
	}
	blobName = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "azblob" || u.Host == "" || blobName == "" {
		return "", "", apperrors.NewInvalidInputError(
			fmt.Sprintf("blob reference %q must look like azblob://container/blob", ref), nil)
	}
	return u.Host, blobName, nil
}

func (s *AzureBlobStore) ReadTemplate(ctx context.Context, ref string) ([]byte, error) {
	containerName, blobName, err := ParseBlobRef(ref)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, blobError(ref, "download", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxTemplateSize+1))
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read blob %s", ref), err)
	}
	if len(data) > MaxTemplateSize {
		return nil, apperrors.NewStorageError(fmt.Sprintf("template %s exceeds %d bytes", ref, MaxTemplateSize), nil)
	}
	return data, nil
}

func (s *AzureBlobStore) WriteTemplate(ctx context.Context, ref string, data []byte) error {
	containerName, blobName, err := ParseBlobRef(ref)
	if err != nil {
		return err
	}

	contentType := "application/json"
	_, err = s.client.UploadBuffer(ctx, containerName, blobName, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return blobError(ref, "upload", err)
	}
	return nil
}

func blobError(ref, op string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return apperrors.NewNotFoundError(fmt.Sprintf("template %s not found", ref), err)
	}
	return apperrors.NewStorageError(fmt.Sprintf("blob %s failed for %s", op, ref), err)
}
