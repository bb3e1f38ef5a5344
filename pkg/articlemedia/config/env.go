package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the flat environment mapping read by cleanenv.
type envConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"text"`

	DatabaseURL string `env:"DATABASE_URL"`
	StorageURL  string `env:"STORAGE_URL" env-default:"memory://"`
	CacheURL    string `env:"CACHE_URL" env-default:"memory://"`

	ListTTL           time.Duration `env:"LIST_CACHE_TTL" env-default:"1m"`
	StatsTTL          time.Duration `env:"STATS_CACHE_TTL" env-default:"5m"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" env-default:"30s"`

	AWSRegion          string `env:"AWS_REGION"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Endpoint         string `env:"S3_ENDPOINT"`
	S3UsePathStyle     bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
}

// WithEnv applies environment variable overrides.
//
// DATABASE_URL selects the repository: empty or "memory" uses the
// in-memory repository, "postgres://..." (or "postgresql://...") uses
// PostgreSQL. STORAGE_URL selects blob storage ("memory://",
// "file:///path", "s3://bucket?region=..."). CACHE_URL selects the
// aggregate cache ("memory://" or "redis://host:port/db").
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("reading environment: %w", err)
		}

		c.Port = env.Port
		c.Environment = env.Environment
		c.LogLevel = env.LogLevel
		c.LogFormat = env.LogFormat
		c.StorageURL = env.StorageURL
		c.CacheURL = env.CacheURL
		c.ListTTL = env.ListTTL
		c.StatsTTL = env.StatsTTL
		c.GenerationTimeout = env.GenerationTimeout

		switch {
		case env.DatabaseURL == "" || env.DatabaseURL == "memory":
			c.DatabaseType = "memory"
			c.DatabaseURL = ""
		case strings.HasPrefix(env.DatabaseURL, "postgres://"),
			strings.HasPrefix(env.DatabaseURL, "postgresql://"):
			c.DatabaseType = "postgres"
			c.DatabaseURL = env.DatabaseURL
		default:
			return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", env.DatabaseURL)
		}

		c.S3 = S3Config{
			Region:          env.AWSRegion,
			AccessKeyID:     env.AWSAccessKeyID,
			SecretAccessKey: env.AWSSecretAccessKey,
			Endpoint:        env.S3Endpoint,
			UsePathStyle:    env.S3UsePathStyle,
		}

		return nil
	}
}
