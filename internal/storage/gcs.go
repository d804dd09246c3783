package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var _ Presigner = (*GCSPresigner)(nil)

// GCSPresigner generates signed URLs for Google Cloud Storage objects.
type GCSPresigner struct {
	client *storage.Client
}

// NewGCSPresigner creates a presigner authenticated with a service account key file.
func NewGCSPresigner(ctx context.Context, keyFile string) (*GCSPresigner, error) {
	if keyFile == "" {
		return nil, fmt.Errorf("GCS key file is required")
	}
	client, err := storage.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, keyFile))
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSPresigner{client: client}, nil
}

// PresignGetObject generates a signed GET URL for a gs://bucket/key URI.
func (p *GCSPresigner) PresignGetObject(_ context.Context, path string, expiry time.Duration) (string, error) {
	bucket, key, err := parseGCSPath(path)
	if err != nil {
		return "", err
	}

	signedURL, err := p.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("sign GetObject for %q: %w", path, err)
	}
	return signedURL, nil
}

// Close releases the underlying client.
func (p *GCSPresigner) Close() error {
	return p.client.Close()
}

func parseGCSPath(path string) (bucket, key string, err error) {
	return parseBucketPath(path, "gs")
}
