package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (FSMSALE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      string `default:"memory" usage:"Storage backend: memory or postgres"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (FSMSALE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (FSMSALE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	// DemoAPIKey is registered with every group in memory mode so the
	// API is usable without seeding.
	DemoAPIKey string `usage:"API key registered at startup in memory mode" flag:"demo-api-key"`
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Graceful   GracefulConfig
	Health     HealthConfig
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// HealthConfig controls the background health checks.
type HealthConfig struct {
	Interval         time.Duration `default:"10s" usage:"Health check interval" flag:"health-interval"`
	FailureThreshold int           `default:"3" usage:"Consecutive failures before a check is unhealthy" flag:"health-failure-threshold"`
	MaxGoroutines    int           `default:"10000" usage:"Goroutine count above which liveness fails" flag:"health-max-goroutines"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig([]string{"config.yaml", "/etc/fsmsale/config.yaml"}, false)
}

func loadConfig(files []string, skipFlags bool) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FSMSALE",
		SkipFlags: skipFlags,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for postgres storage: set FSMSALE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage %q: want %s or %s", c.Storage, StorageMemory, StoragePostgres)
	}
	if c.APIKeyPepper == "" {
		return errors.New("API key pepper is required: set FSMSALE_API_KEY_PEPPER")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's FSMSALE_-prefixed configuration. A DATABASE_URL alone
// switches storage to postgres.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
			if os.Getenv("FSMSALE_STORAGE") == "" {
				c.Storage = StoragePostgres
			}
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
