package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

var _ Presigner = (*AzurePresigner)(nil)

// AzurePresigner generates SAS URLs for Azure Blob Storage objects using
// shared-key credentials.
type AzurePresigner struct {
	client *azblob.Client
}

// NewAzurePresigner creates a presigner for the given storage account.
func NewAzurePresigner(accountName, accountKey string) (*AzurePresigner, error) {
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("Azure account name and key are required")
	}

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzurePresigner{client: client}, nil
}

// PresignGetObject generates a read-only SAS URL for an az:// or abfss:// URI.
func (p *AzurePresigner) PresignGetObject(_ context.Context, path string, expiry time.Duration) (string, error) {
	container, key, err := parseAzurePath(path)
	if err != nil {
		return "", err
	}

	blobClient := p.client.ServiceClient().NewContainerClient(container).NewBlobClient(key)
	sasURL, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(expiry), nil)
	if err != nil {
		return "", fmt.Errorf("generate SAS URL for %q: %w", path, err)
	}
	return sasURL, nil
}

// parseAzurePath extracts container and key from an Azure storage URI.
//
//	abfss://container@account.dfs.core.windows.net/path/to/file
//	az://container/path/to/file
func parseAzurePath(path string) (container, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("parse Azure path %q: %w", path, err)
	}

	switch u.Scheme {
	case "abfss":
		// url.Parse puts the container in userinfo.
		if u.User == nil {
			return "", "", fmt.Errorf("abfss path %q missing container@account component", path)
		}
		container = u.User.Username()
	case "az":
		container = u.Host
	default:
		return "", "", fmt.Errorf("unrecognized Azure path scheme %q in %q", u.Scheme, path)
	}
	key = strings.TrimPrefix(u.Path, "/")

	if container == "" {
		return "", "", fmt.Errorf("empty container in Azure path %q", path)
	}
	if key == "" {
		return "", "", fmt.Errorf("empty key in Azure path %q", path)
	}
	return container, key, nil
}
