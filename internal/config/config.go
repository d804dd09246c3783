// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageConfig holds the optional cloud credentials used to presign remote dataset files.
type StorageConfig struct {
	// S3 fields are nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string

	GCSKeyFile       string // service account JSON used to sign gs:// URLs
	AzureAccountName string
	AzureAccountKey  string

	PresignExpiry time.Duration // lifetime of presigned URLs (default 1h)
}

// HasS3Config returns true if all required S3 fields are set.
func (s *StorageConfig) HasS3Config() bool {
	return s.S3KeyID != nil && s.S3Secret != nil &&
		s.S3Endpoint != nil && s.S3Region != nil
}

// HasGCSConfig returns true when a GCS service account key file is configured.
func (s *StorageConfig) HasGCSConfig() bool {
	return s.GCSKeyFile != ""
}

// HasAzureConfig returns true when Azure shared key credentials are configured.
func (s *StorageConfig) HasAzureConfig() bool {
	return s.AzureAccountName != "" && s.AzureAccountKey != ""
}

// Config holds the configuration for the query engine, its HTTP API and the CLI.
type Config struct {
	ListenAddr   string // HTTP listen address (default ":8080")
	DatasetsDir  string // root of <org>/<dataset>/dataset.yaml descriptors (default "datasets")
	DatacardsDir string // root of <org>/<definition>.yml datacards (default "datacards")
	MetaDBPath   string // SQLite file holding query history (default "dataframehub_meta.sqlite")
	LogLevel     string // log level: debug, info, warn, error (default "info")
	Env          string // environment: "development" (default) or "production"

	// Query execution
	QueryTimeout      time.Duration // per-request deadline (default 30s, 0 disables)
	StrictExpressions bool          // guard select/where/order_by entries (default true)
	ReregisterAlways  bool          // re-snapshot physical files on every query (default true)

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// JWTSecret enables HS256 bearer auth when set. Tokens carry an "orgs" claim.
	JWTSecret string

	// OIDC bearer auth, used instead of JWTSecret when OIDCIssuerURL is set.
	OIDCIssuerURL string
	OIDCAudience  string
	OIDCJWKSURL   string // skips discovery when set

	// Query history retention
	HistoryRetention     time.Duration // entries older than this are pruned (default 720h, 0 keeps everything)
	HistoryPruneSchedule string        // cron spec for the prune job (default "@hourly")

	Storage StorageConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AuthEnabled returns true when bearer token auth is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != "" || c.OIDCIssuerURL != ""
}

// LoadFromEnv loads configuration from environment variables.
// Cloud storage variables are optional; the engine serves local files without them.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:           os.Getenv("LISTEN_ADDR"),
		DatasetsDir:          os.Getenv("DATASETS_DIR"),
		DatacardsDir:         os.Getenv("DATACARDS_DIR"),
		MetaDBPath:           os.Getenv("META_DB_PATH"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		Env:                  os.Getenv("ENV"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		OIDCIssuerURL:        os.Getenv("OIDC_ISSUER_URL"),
		OIDCAudience:         os.Getenv("OIDC_AUDIENCE"),
		OIDCJWKSURL:          os.Getenv("OIDC_JWKS_URL"),
		HistoryRetention:     30 * 24 * time.Hour,
		HistoryPruneSchedule: os.Getenv("HISTORY_PRUNE_SCHEDULE"),
		StrictExpressions:    parseBoolEnvDefault("QUERY_STRICT_EXPRESSIONS", true),
		ReregisterAlways:     parseBoolEnvDefault("REREGISTER_ALWAYS", true),
		QueryTimeout:         30 * time.Second,
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid QUERY_TIMEOUT %q: %w", v, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("QUERY_TIMEOUT must not be negative")
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("HISTORY_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_RETENTION %q: %w", v, err)
		}
		cfg.HistoryRetention = d
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// Storage credentials are only set if present
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.Storage.S3KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.Storage.S3Secret = &v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.Storage.S3Endpoint = &v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.Storage.S3Region = &v
	}
	cfg.Storage.GCSKeyFile = os.Getenv("GCS_KEY_FILE")
	cfg.Storage.AzureAccountName = os.Getenv("AZURE_ACCOUNT_NAME")
	cfg.Storage.AzureAccountKey = os.Getenv("AZURE_ACCOUNT_KEY")
	if v := os.Getenv("PRESIGN_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Storage.PresignExpiry = d
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DatasetsDir == "" {
		cfg.DatasetsDir = "datasets"
	}
	if cfg.DatacardsDir == "" {
		cfg.DatacardsDir = "datacards"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "dataframehub_meta.sqlite"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Storage.PresignExpiry == 0 {
		cfg.Storage.PresignExpiry = time.Hour
	}
	if cfg.HistoryPruneSchedule == "" {
		cfg.HistoryPruneSchedule = "@hourly"
	}

	if !cfg.AuthEnabled() {
		cfg.Warnings = append(cfg.Warnings, "neither JWT_SECRET nor OIDC_ISSUER_URL is set: query endpoints accept anonymous requests for every organization")
	}
	if !cfg.StrictExpressions {
		cfg.Warnings = append(cfg.Warnings, "QUERY_STRICT_EXPRESSIONS is disabled: select/where/order_by entries are passed to the backend verbatim")
	}
	if !cfg.Storage.HasS3Config() && cfg.Storage.S3KeyID != nil {
		cfg.Warnings = append(cfg.Warnings, "S3 credentials are incomplete: KEY_ID, SECRET, ENDPOINT and REGION must all be set")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if !cfg.AuthEnabled() {
			return nil, fmt.Errorf("JWT_SECRET or OIDC_ISSUER_URL must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if !cfg.StrictExpressions {
			return nil, fmt.Errorf("QUERY_STRICT_EXPRESSIONS cannot be disabled in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "0", "false", "no", "off":
		return false
	case "1", "true", "yes", "on":
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		// Environment wins over the file.
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
