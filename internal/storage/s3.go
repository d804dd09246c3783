// Package storage locates dataset files, presigning cloud object URIs
// (s3://, gs://, az://, abfss://) into HTTPS URLs the query engine can read.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var _ Presigner = (*S3Presigner)(nil)

// S3Presigner generates presigned GET URLs for S3-compatible object storage.
type S3Presigner struct {
	presignClient *s3.PresignClient
}

// S3Options configures an S3Presigner.
type S3Options struct {
	KeyID    string
	Secret   string
	Endpoint string // host or URL; a bare host is served over https
	Region   string
	// VirtualHost selects bucket.host addressing instead of path-style.
	VirtualHost bool
}

// NewS3Presigner creates a presigner for the given endpoint and static credentials.
func NewS3Presigner(opts S3Options) (*S3Presigner, error) {
	if opts.KeyID == "" || opts.Secret == "" || opts.Endpoint == "" || opts.Region == "" {
		return nil, fmt.Errorf("S3 config is incomplete")
	}

	endpoint := opts.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	client := s3.New(s3.Options{
		Region:       opts.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.KeyID, opts.Secret, ""),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: !opts.VirtualHost,
	})
	return &S3Presigner{presignClient: s3.NewPresignClient(client)}, nil
}

// PresignGetObject generates a presigned GET URL for an s3://bucket/key URI.
func (p *S3Presigner) PresignGetObject(ctx context.Context, s3Path string, expiry time.Duration) (string, error) {
	bucket, key, err := ParseS3Path(s3Path)
	if err != nil {
		return "", err
	}

	result, err := p.presignClient.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(expiry),
	)
	if err != nil {
		return "", fmt.Errorf("presign GetObject for %q: %w", s3Path, err)
	}
	return result.URL, nil
}

// ParseS3Path extracts bucket and key from an "s3://bucket/path/to/file" URI.
func ParseS3Path(s3Path string) (bucket, key string, err error) {
	return parseBucketPath(s3Path, "s3")
}

// parseBucketPath splits scheme://bucket/key URIs.
func parseBucketPath(path, scheme string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("parse %s path %q: %w", scheme, path, err)
	}
	if u.Scheme != scheme {
		return "", "", fmt.Errorf("expected %s:// scheme, got %q in %q", scheme, u.Scheme, path)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("empty bucket in %s path %q", scheme, path)
	}
	if key == "" {
		return "", "", fmt.Errorf("empty key in %s path %q", scheme, path)
	}
	return bucket, key, nil
}
