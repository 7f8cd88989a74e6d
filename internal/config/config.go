// Package config defines the top-level configuration for the PulseDelta
// backend and provides validation helpers.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by environment variables.
type Config struct {
	Environment string           `toml:"environment"`
	Mode        string           `toml:"mode"`
	LogLevel    string           `toml:"log_level"`
	Logging     LoggingConfig    `toml:"logging"`
	Server      ServerConfig     `toml:"server"`
	Database    DatabaseConfig   `toml:"database"`
	Redis       RedisConfig      `toml:"redis"`
	RateLimit   RateLimitConfig  `toml:"rate_limit"`
	Blockchain  BlockchainConfig `toml:"blockchain"`
	Oracle      OracleConfig     `toml:"oracle"`
	AI          AIConfig         `toml:"ai"`
	Security    SecurityConfig   `toml:"security"`
	Analytics   AnalyticsConfig  `toml:"analytics"`
	Social      SocialConfig     `toml:"social"`
	S3          S3Config         `toml:"s3"`
	Archive     ArchiveConfig    `toml:"archive"`
}

// LoggingConfig controls log output beyond stdout.
type LoggingConfig struct {
	// FilePath is a directory; when set, logs are also appended to
	// FilePath/combined.log.
	FilePath string `toml:"file_path"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	APIVersion      string   `toml:"api_version"`
	CORSOrigins     []string `toml:"cors_origins"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
	// TrustProxy makes client IPs come from X-Forwarded-For.
	TrustProxy bool `toml:"trust_proxy"`
	// MetricsAPIKey protects /metrics when set.
	MetricsAPIKey string `toml:"metrics_api_key"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string   `toml:"dsn"`
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	Name          string   `toml:"name"`
	User          string   `toml:"user"`
	Password      string   `toml:"password"`
	SSLMode       string   `toml:"ssl_mode"`
	PoolMin       int      `toml:"pool_min"`
	PoolMax       int      `toml:"pool_max"`
	RunMigrations bool     `toml:"run_migrations"`
	SlowQuery     duration `toml:"slow_query"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	URL        string   `toml:"url"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	MarketTTL  duration `toml:"market_ttl"`
}

// RateLimitConfig bounds requests per client IP on /api/.
type RateLimitConfig struct {
	Enabled     bool     `toml:"enabled"`
	Window      duration `toml:"window"`
	MaxRequests int      `toml:"max_requests"`
}

// BlockchainConfig holds the JSON-RPC endpoint and contract addresses.
type BlockchainConfig struct {
	RPCURL    string          `toml:"rpc_url"`
	ChainID   int64           `toml:"chain_id"`
	Network   string          `toml:"network"`
	Timeout   duration        `toml:"timeout"`
	Contracts ContractsConfig `toml:"contracts"`
}

// ContractsConfig lists the deployed contract addresses.
type ContractsConfig struct {
	MarketFactory     string `toml:"market_factory"`
	FeeManager        string `toml:"fee_manager"`
	SocialPredictions string `toml:"social_predictions"`
	CollateralToken   string `toml:"collateral_token"`
}

// OracleConfig holds the resolution oracle identity.
type OracleConfig struct {
	Enabled          bool     `toml:"enabled"`
	PrivateKey       string   `toml:"private_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	Address          string   `toml:"address"`
	CheckInterval    duration `toml:"check_interval"`
}

// AIConfig holds the forecast service endpoint.
type AIConfig struct {
	Enabled bool     `toml:"enabled"`
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// SecurityConfig holds token settings.
type SecurityConfig struct {
	JWTSecret    string   `toml:"jwt_secret"`
	JWTExpiresIn duration `toml:"jwt_expires_in"`
	// RequireWalletAuth makes comment writes require a bearer token whose
	// subject is the acting wallet.
	RequireWalletAuth bool `toml:"require_wallet_auth"`
}

// AnalyticsConfig tunes the analytics endpoints.
type AnalyticsConfig struct {
	// StrictTokens rejects unknown interval, groupBy and timeframe tokens
	// instead of falling back to defaults.
	StrictTokens bool `toml:"strict_tokens"`
}

// SocialConfig bounds user comments.
type SocialConfig struct {
	CommentMinLength int `toml:"comment_min_length"`
	CommentMaxLength int `toml:"comment_max_length"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig schedules the export of old market events to S3.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Cron          string   `toml:"cron"`
	BatchSize     int      `toml:"batch_size"`
	LockTTL       duration `toml:"lock_ttl"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s", "7d").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "7d".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = parseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// parseDuration accepts time.ParseDuration syntax plus a whole-day suffix
// ("7d").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// IsProduction reports whether the service runs in the production
// environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Environment: "development",
		Mode:        "server",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            5000,
			APIVersion:      "v1",
			CORSOrigins:     []string{"http://localhost:3000"},
			MaxBodyBytes:    10 << 20,
			ReadTimeout:     duration{15 * time.Second},
			WriteTimeout:    duration{30 * time.Second},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Name:          "pulsedelta_dev",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMin:       2,
			PoolMax:       10,
			RunMigrations: true,
			SlowQuery:     duration{500 * time.Millisecond},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "pulsedelta:",
			MarketTTL:  duration{5 * time.Minute},
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Window:      duration{15 * time.Minute},
			MaxRequests: 100,
		},
		Blockchain: BlockchainConfig{
			RPCURL:  "https://alfajores-forno.celo-testnet.org",
			ChainID: 44787,
			Network: "alfajores",
			Timeout: duration{10 * time.Second},
		},
		Oracle: OracleConfig{
			CheckInterval: duration{5 * time.Minute},
		},
		AI: AIConfig{
			BaseURL: "http://localhost:5001",
			Timeout: duration{30 * time.Second},
		},
		Security: SecurityConfig{
			JWTSecret:    DefaultJWTSecret,
			JWTExpiresIn: duration{7 * 24 * time.Hour},
		},
		Social: SocialConfig{
			CommentMinLength: 3,
			CommentMaxLength: 1000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pulsedelta-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			Cron:          "0 3 * * *",
			BatchSize:     5000,
			LockTTL:       duration{30 * time.Minute},
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"demo":    true,
	"migrate": true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validEnvironments = map[string]bool{
	"development": true,
	"production":  true,
	"test":        true,
}

// NeedsDatabase reports whether the configured mode talks to PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return strings.ToLower(c.Mode) != "demo"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validEnvironments[strings.ToLower(c.Environment)] {
		errs = append(errs, fmt.Sprintf("unknown environment %q (valid: development, production, test)", c.Environment))
	}
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, demo, migrate, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.APIVersion == "" {
		errs = append(errs, "server: api_version must not be empty")
	}
	if c.Server.MaxBodyBytes < 1 {
		errs = append(errs, "server: max_body_bytes must be >= 1")
	}

	// Database
	if c.NeedsDatabase() && strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Name == "" {
			errs = append(errs, "database: name must not be empty")
		}
	}
	if c.Database.PoolMax < 1 {
		errs = append(errs, "database: pool_max must be >= 1")
	}
	if c.Database.PoolMin < 0 {
		errs = append(errs, "database: pool_min must be >= 0")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		errs = append(errs, "database: pool_min must not exceed pool_max")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" && c.Redis.URL == "" {
			errs = append(errs, "redis: addr or url must be set when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Window.Duration <= 0 {
			errs = append(errs, "rate_limit: window must be > 0 when enabled")
		}
		if c.RateLimit.MaxRequests < 1 {
			errs = append(errs, "rate_limit: max_requests must be >= 1 when enabled")
		}
	}

	// Blockchain
	if c.Blockchain.RPCURL == "" {
		errs = append(errs, "blockchain: rpc_url must not be empty")
	}
	if c.Blockchain.ChainID <= 0 {
		errs = append(errs, "blockchain: chain_id must be positive")
	}

	// Oracle
	if c.Oracle.Enabled {
		if c.Oracle.PrivateKey == "" && c.Oracle.EncryptedKeyPath == "" {
			errs = append(errs, "oracle: either private_key or encrypted_key_path must be set when enabled")
		}
		if c.Oracle.EncryptedKeyPath != "" && c.Oracle.KeyPassword == "" {
			errs = append(errs, "oracle: key_password is required when encrypted_key_path is set")
		}
	}

	// AI
	if c.AI.Enabled && c.AI.BaseURL == "" {
		errs = append(errs, "ai: base_url must be set when enabled")
	}

	// Social
	if c.Social.CommentMinLength < 1 {
		errs = append(errs, "social: comment_min_length must be >= 1")
	}
	if c.Social.CommentMaxLength < c.Social.CommentMinLength {
		errs = append(errs, "social: comment_max_length must not be below comment_min_length")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Archive
	archiving := c.Archive.Enabled || strings.ToLower(c.Mode) == "archive"
	if archiving {
		if !c.S3.Enabled {
			errs = append(errs, "archive: s3.enabled is required for archiving")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.BatchSize < 1 {
			errs = append(errs, "archive: batch_size must be >= 1")
		}
	}
	if c.Archive.Enabled {
		if _, err := cron.ParseStandard(c.Archive.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("archive: invalid cron %q: %v", c.Archive.Cron, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
