package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressmill/article-media/pkg/articlemedia"
	memorycache "github.com/pressmill/article-media/pkg/articlemedia/cache/memory"
	rediscache "github.com/pressmill/article-media/pkg/articlemedia/cache/redis"
	"github.com/pressmill/article-media/pkg/articlemedia/codec/imaging"
	"github.com/pressmill/article-media/pkg/articlemedia/repo/memory"
	repopg "github.com/pressmill/article-media/pkg/articlemedia/repo/postgres"
	fsstorage "github.com/pressmill/article-media/pkg/articlemedia/storage/fs"
	memorystorage "github.com/pressmill/article-media/pkg/articlemedia/storage/memory"
	s3storage "github.com/pressmill/article-media/pkg/articlemedia/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top
// of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:              "8080",
		Environment:       "development",
		LogLevel:          "info",
		LogFormat:         "text",
		DatabaseType:      "memory",
		StorageURL:        "memory://",
		CacheURL:          "memory://",
		ListTTL:           time.Minute,
		StatsTTL:          5 * time.Minute,
		GenerationTimeout: 30 * time.Second,
	}
}

// ServerConfig represents server configuration for the article-media
// service.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	LogLevel    string
	LogFormat   string // "text" or "json"

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration: memory://, file:///path, s3://bucket?region=...
	StorageURL string
	S3         S3Config

	// Cache configuration: memory:// or redis://host:port/db
	CacheURL string

	// Variant pipeline options
	ListTTL           time.Duration
	StatsTTL          time.Duration
	GenerationTimeout time.Duration

	// Logger used by the service for cleanup warnings. Optional.
	Logger *slog.Logger
}

// S3Config carries credentials that do not fit in the storage URL.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch scheme(c.StorageURL) {
	case "memory", "file", "s3":
	default:
		return fmt.Errorf("unsupported STORAGE_URL scheme: %s (use 'memory://', 'file://...', or 's3://...')", c.StorageURL)
	}

	switch scheme(c.CacheURL) {
	case "memory", "redis", "rediss":
	default:
		return fmt.Errorf("unsupported CACHE_URL scheme: %s (use 'memory://' or 'redis://...')", c.CacheURL)
	}

	if c.GenerationTimeout <= 0 {
		return errors.New("generation timeout must be positive")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration.
func (c *ServerConfig) BuildService(ctx context.Context) (articlemedia.Service, error) {
	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	blobs, err := c.buildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	cacheStore, err := c.buildCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache: %w", err)
	}

	options := []articlemedia.Option{
		articlemedia.WithRepository(repo),
		articlemedia.WithBlobStore(blobs),
		articlemedia.WithCodec(imaging.New()),
		articlemedia.WithCache(cacheStore),
		articlemedia.WithCacheTTLs(c.ListTTL, c.StatsTTL),
		articlemedia.WithGenerationTimeout(c.GenerationTimeout),
	}
	if c.Logger != nil {
		options = append(options, articlemedia.WithLogger(c.Logger))
	}

	return articlemedia.New(options...)
}

func (c *ServerConfig) buildRepository(ctx context.Context) (articlemedia.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildBlobStore() (articlemedia.BlobStore, error) {
	u, err := url.Parse(c.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "memory":
		return memorystorage.New(), nil

	case "file":
		if u.Path == "" {
			return nil, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return fsstorage.New(fsstorage.Config{BaseDir: u.Path})

	case "s3":
		if u.Host == "" {
			return nil, errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
		region := c.S3.Region
		if qr := u.Query().Get("region"); qr != "" {
			region = qr
		}
		if region == "" {
			region = "us-east-1"
		}
		return s3storage.New(s3storage.Config{
			Region:          region,
			Bucket:          u.Host,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Endpoint:        c.S3.Endpoint,
			UsePathStyle:    c.S3.UsePathStyle,
		})

	default:
		return nil, fmt.Errorf("unsupported storage scheme: %s", u.Scheme)
	}
}

func (c *ServerConfig) buildCache(ctx context.Context) (articlemedia.Cache, error) {
	switch scheme(c.CacheURL) {
	case "memory":
		return memorycache.New(), nil
	case "redis", "rediss":
		return rediscache.New(ctx, rediscache.Config{URL: c.CacheURL})
	default:
		return nil, fmt.Errorf("unsupported cache scheme: %s", c.CacheURL)
	}
}

// PingPostgres verifies connectivity to Postgres.
func PingPostgres(ctx context.Context, databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func scheme(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i > 0 {
		return rawURL[:i]
	}
	return rawURL
}
