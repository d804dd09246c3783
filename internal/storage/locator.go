package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"dataframehub/internal/config"
	"dataframehub/internal/domain"
)

var _ domain.FileLocator = (*Locator)(nil)

// Presigner turns a cloud object URI into a time-limited HTTPS URL.
// Implementations: S3Presigner, GCSPresigner, AzurePresigner.
type Presigner interface {
	PresignGetObject(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// Locator maps physical file references to paths or URLs the backend can
// open. Local paths and http(s) URLs pass through unchanged.
type Locator struct {
	presigners map[string]Presigner // by URI scheme
	expiry     time.Duration
	closers    []io.Closer
}

// NewLocator builds a Locator with a presigner for every cloud whose
// credentials are configured.
func NewLocator(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Locator, error) {
	l := NewLocatorWith(cfg.PresignExpiry, nil)

	if cfg.HasS3Config() {
		p, err := NewS3Presigner(S3Options{
			KeyID:    *cfg.S3KeyID,
			Secret:   *cfg.S3Secret,
			Endpoint: *cfg.S3Endpoint,
			Region:   *cfg.S3Region,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 presigner: %w", err)
		}
		l.Register("s3", p)
		logger.Info("s3 presigner configured", "endpoint", *cfg.S3Endpoint)
	}
	if cfg.HasGCSConfig() {
		p, err := NewGCSPresigner(ctx, cfg.GCSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("gcs presigner: %w", err)
		}
		l.Register("gs", p)
		l.closers = append(l.closers, p)
		logger.Info("gcs presigner configured")
	}
	if cfg.HasAzureConfig() {
		p, err := NewAzurePresigner(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("azure presigner: %w", err)
		}
		l.Register("az", p)
		l.Register("abfss", p)
		logger.Info("azure presigner configured", "account", cfg.AzureAccountName)
	}
	return l, nil
}

// NewLocatorWith builds a Locator from explicit presigners keyed by URI scheme.
func NewLocatorWith(expiry time.Duration, presigners map[string]Presigner) *Locator {
	if expiry <= 0 {
		expiry = time.Hour
	}
	l := &Locator{presigners: make(map[string]Presigner, len(presigners)), expiry: expiry}
	for scheme, p := range presigners {
		l.Register(scheme, p)
	}
	return l
}

// Register installs p for URIs with the given scheme.
func (l *Locator) Register(scheme string, p Presigner) {
	l.presigners[strings.ToLower(scheme)] = p
}

// Locate resolves path. Cloud URIs without configured credentials yield a ConfigurationError.
func (l *Locator) Locate(ctx context.Context, path string) (string, error) {
	scheme, rest, ok := strings.Cut(path, "://")
	if !ok {
		return path, nil
	}
	switch scheme = strings.ToLower(scheme); scheme {
	case "file":
		return rest, nil
	case "http", "https":
		return path, nil
	}

	p, ok := l.presigners[scheme]
	if !ok {
		return "", domain.ErrConfiguration("no storage credentials configured for %s:// paths", scheme)
	}
	url, err := p.PresignGetObject(ctx, path, l.expiry)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", path, err)
	}
	return url, nil
}

// Close releases presigner clients.
func (l *Locator) Close() error {
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
