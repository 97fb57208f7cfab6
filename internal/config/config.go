package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Economy   EconomyConfig   `yaml:"economy"`
	Cache     CacheConfig     `yaml:"cache"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    int    `yaml:"port" env:"SERVER_PORT"`
	Host    string `yaml:"host" env:"SERVER_HOST"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

// GetHost returns the listen host; managed container platforms listen on all interfaces.
func (c ServerConfig) GetHost() string {
	if os.Getenv("K_SERVICE") != "" || os.Getenv("ECS_CONTAINER_METADATA_URI") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// Addr is host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// AuthConfig holds Google OAuth authentication configuration
type AuthConfig struct {
	Enabled            bool     `yaml:"enabled" env:"AUTH_ENABLED"`
	GoogleClientID     string   `yaml:"google_client_id"`
	GoogleClientSecret string   `yaml:"google_client_secret"`
	RedirectURL        string   `yaml:"redirect_url"`
	AllowedDomains     []string `yaml:"allowed_domains" env:"AUTH_ALLOWED_DOMAINS" envSeparator:","`
	AllowedEmails      []string `yaml:"allowed_emails" env:"AUTH_ALLOWED_EMAILS" envSeparator:","`
	CookieName         string   `yaml:"cookie_name"`
	CookieMaxAge       int      `yaml:"cookie_max_age"`
}

// WarehouseConfig selects and connects the analytical store.
type WarehouseConfig struct {
	Driver           string `yaml:"driver" env:"WAREHOUSE_DRIVER"`
	ProjectID        string `yaml:"project_id" env:"GOOGLE_CLOUD_PROJECT"`
	Table            string `yaml:"table" env:"WAREHOUSE_TABLE"`
	Shape            string `yaml:"shape" env:"WAREHOUSE_SHAPE"`
	CredentialsFile  string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	CredentialsJSON  string `yaml:"-"`
	DSN              string `yaml:"dsn" env:"WAREHOUSE_DSN"`
	ConnectionString string `yaml:"-"`
	Warehouse        string `yaml:"warehouse" env:"SNOWFLAKE_WAREHOUSE"`
	MaxBytesBilled   int64  `yaml:"max_bytes_billed"`
	PingRetries      uint64 `yaml:"ping_retries"`
}

// EconomyConfig controls classification and the default load window.
type EconomyConfig struct {
	PaidSources    []string `yaml:"paid_sources" env:"ECONOMY_PAID_SOURCES" envSeparator:","`
	LoadWindowDays int      `yaml:"load_window_days" env:"LOAD_WINDOW_DAYS"`
}

// CacheConfig holds the row cache settings. An empty RedisURL keeps the
// cache in process.
type CacheConfig struct {
	TTLSeconds      int    `yaml:"ttl_seconds" env:"CACHE_TTL_SECONDS"`
	RedisURL        string `yaml:"redis_url"`
	MemoryEntries   int    `yaml:"memory_entries"`
	LockWaitSeconds int    `yaml:"lock_wait_seconds"`
	// LockTTLSeconds must exceed FetchTimeoutSeconds.
	LockTTLSeconds      int `yaml:"lock_ttl_seconds"`
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" env:"CACHE_FETCH_TIMEOUT_SECONDS"`
}

// TTL returns the cache TTL as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LockWait returns how long a replica waits for a peer's fetch
func (c CacheConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// LockTTL returns how long the replica fetch lock lives
func (c CacheConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// FetchTimeout bounds one shared warehouse fetch
func (c CacheConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// SecretsConfig locates the secret sources consulted after the environment.
type SecretsConfig struct {
	File     string `yaml:"file" env:"SECRETS_FILE"`
	S3Bucket string `yaml:"s3_bucket" env:"SECRETS_S3_BUCKET"`
	S3Key    string `yaml:"s3_key" env:"SECRETS_S3_KEY"`
	S3Region string `yaml:"s3_region" env:"SECRETS_S3_REGION"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOG_LEVEL"`
	DisableRedaction bool   `yaml:"disable_redaction" env:"LOG_DISABLE_REDACTION"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if len(cfg.Auth.AllowedDomains) == 0 {
		cfg.Auth.AllowedDomains = []string{"peerplay.com", "peerplay.io"}
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "consumption_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 86400
	}
	if cfg.Warehouse.Driver == "" {
		cfg.Warehouse.Driver = "bigquery"
	}
	if cfg.Warehouse.Table == "" {
		cfg.Warehouse.Table = "yotam-395120.peerplay.fact_consumption_daily_dashboard"
	}
	if cfg.Warehouse.ProjectID == "" && cfg.Warehouse.Driver == "bigquery" {
		cfg.Warehouse.ProjectID = "yotam-395120"
	}
	if cfg.Warehouse.Shape == "" {
		cfg.Warehouse.Shape = "wide"
	}
	if cfg.Warehouse.PingRetries == 0 {
		cfg.Warehouse.PingRetries = 5
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}
	if cfg.Cache.MemoryEntries == 0 {
		cfg.Cache.MemoryEntries = 64
	}
	if cfg.Cache.LockWaitSeconds == 0 {
		cfg.Cache.LockWaitSeconds = 30
	}
	if cfg.Cache.FetchTimeoutSeconds == 0 {
		cfg.Cache.FetchTimeoutSeconds = 300
	}
	if cfg.Cache.LockTTLSeconds <= cfg.Cache.FetchTimeoutSeconds {
		cfg.Cache.LockTTLSeconds = cfg.Cache.FetchTimeoutSeconds + 60
	}
	if cfg.Secrets.File == "" {
		cfg.Secrets.File = ".streamlit/secrets.toml"
	}
	if cfg.Secrets.S3Key == "" {
		cfg.Secrets.S3Key = "consumption-dashboard/secrets.json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first. A missing config file is not an
// error; the defaults are used instead.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := readFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	// env tags only override what they name; defaults are derived afterwards
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}
