package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, and returns the
// final Config. A missing file leaves the defaults in place. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from the environment. The bare
// names (PORT, DB_HOST, ...) are applied first so that the namespaced
// PULSEDELTA_* variables win when both are set.
func applyEnvOverrides(cfg *Config) {
	applyLegacyEnv(cfg)

	// ── Top-level ──
	setStr(&cfg.Environment, "PULSEDELTA_ENVIRONMENT")
	setStr(&cfg.Mode, "PULSEDELTA_MODE")
	setStr(&cfg.LogLevel, "PULSEDELTA_LOG_LEVEL")
	setStr(&cfg.Logging.FilePath, "PULSEDELTA_LOGGING_FILE_PATH")

	// ── Server ──
	setInt(&cfg.Server.Port, "PULSEDELTA_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PULSEDELTA_SERVER_CORS_ORIGINS")
	setInt64(&cfg.Server.MaxBodyBytes, "PULSEDELTA_SERVER_MAX_BODY_BYTES")
	setBool(&cfg.Server.TrustProxy, "PULSEDELTA_SERVER_TRUST_PROXY")
	setStr(&cfg.Server.MetricsAPIKey, "PULSEDELTA_SERVER_METRICS_API_KEY")

	// ── Database ──
	setStr(&cfg.Database.DSN, "PULSEDELTA_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "PULSEDELTA_DATABASE_HOST")
	setInt(&cfg.Database.Port, "PULSEDELTA_DATABASE_PORT")
	setStr(&cfg.Database.Name, "PULSEDELTA_DATABASE_NAME")
	setStr(&cfg.Database.User, "PULSEDELTA_DATABASE_USER")
	setStr(&cfg.Database.Password, "PULSEDELTA_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "PULSEDELTA_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMin, "PULSEDELTA_DATABASE_POOL_MIN")
	setInt(&cfg.Database.PoolMax, "PULSEDELTA_DATABASE_POOL_MAX")
	setBool(&cfg.Database.RunMigrations, "PULSEDELTA_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PULSEDELTA_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "PULSEDELTA_REDIS_URL")
	setStr(&cfg.Redis.Addr, "PULSEDELTA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PULSEDELTA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PULSEDELTA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PULSEDELTA_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "PULSEDELTA_REDIS_TLS_ENABLED")

	// ── Rate limit ──
	setBool(&cfg.RateLimit.Enabled, "PULSEDELTA_RATE_LIMIT_ENABLED")
	setDuration(&cfg.RateLimit.Window, "PULSEDELTA_RATE_LIMIT_WINDOW")
	setInt(&cfg.RateLimit.MaxRequests, "PULSEDELTA_RATE_LIMIT_MAX_REQUESTS")

	// ── Blockchain ──
	setStr(&cfg.Blockchain.RPCURL, "PULSEDELTA_BLOCKCHAIN_RPC_URL")
	setInt64(&cfg.Blockchain.ChainID, "PULSEDELTA_BLOCKCHAIN_CHAIN_ID")
	setStr(&cfg.Blockchain.Network, "PULSEDELTA_BLOCKCHAIN_NETWORK")

	// ── Oracle ──
	setBool(&cfg.Oracle.Enabled, "PULSEDELTA_ORACLE_ENABLED")
	setStr(&cfg.Oracle.PrivateKey, "PULSEDELTA_ORACLE_PRIVATE_KEY")
	setStr(&cfg.Oracle.EncryptedKeyPath, "PULSEDELTA_ORACLE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Oracle.KeyPassword, "PULSEDELTA_ORACLE_KEY_PASSWORD")
	setStr(&cfg.Oracle.Address, "PULSEDELTA_ORACLE_ADDRESS")

	// ── AI ──
	setBool(&cfg.AI.Enabled, "PULSEDELTA_AI_ENABLED")
	setStr(&cfg.AI.BaseURL, "PULSEDELTA_AI_BASE_URL")
	setStr(&cfg.AI.APIKey, "PULSEDELTA_AI_API_KEY")

	// ── Security ──
	setStr(&cfg.Security.JWTSecret, "PULSEDELTA_SECURITY_JWT_SECRET")
	setDuration(&cfg.Security.JWTExpiresIn, "PULSEDELTA_SECURITY_JWT_EXPIRES_IN")
	setBool(&cfg.Security.RequireWalletAuth, "PULSEDELTA_SECURITY_REQUIRE_WALLET_AUTH")

	// ── Analytics / social ──
	setBool(&cfg.Analytics.StrictTokens, "PULSEDELTA_ANALYTICS_STRICT_TOKENS")
	setInt(&cfg.Social.CommentMinLength, "PULSEDELTA_SOCIAL_COMMENT_MIN_LENGTH")
	setInt(&cfg.Social.CommentMaxLength, "PULSEDELTA_SOCIAL_COMMENT_MAX_LENGTH")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PULSEDELTA_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PULSEDELTA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PULSEDELTA_S3_REGION")
	setStr(&cfg.S3.Bucket, "PULSEDELTA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PULSEDELTA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PULSEDELTA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PULSEDELTA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PULSEDELTA_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PULSEDELTA_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "PULSEDELTA_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "PULSEDELTA_ARCHIVE_CRON")
}

// applyLegacyEnv maps the variable names used by earlier deployments of the
// service.
func applyLegacyEnv(cfg *Config) {
	setStr(&cfg.Environment, "NODE_ENV")
	setInt(&cfg.Server.Port, "PORT")
	setStr(&cfg.Server.APIVersion, "API_VERSION")
	setStringSlice(&cfg.Server.CORSOrigins, "CORS_ORIGIN")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.Logging.FilePath, "LOG_FILE_PATH")

	setStr(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setStr(&cfg.Database.Name, "DB_NAME")
	setStr(&cfg.Database.User, "DB_USER")
	setStr(&cfg.Database.Password, "DB_PASSWORD")
	setInt(&cfg.Database.PoolMin, "DB_POOL_MIN")
	setInt(&cfg.Database.PoolMax, "DB_POOL_MAX")

	if os.Getenv("REDIS_URL") != "" {
		cfg.Redis.Enabled = true
		setStr(&cfg.Redis.URL, "REDIS_URL")
	}

	setMillis(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW_MS")
	setInt(&cfg.RateLimit.MaxRequests, "RATE_LIMIT_MAX_REQUESTS")

	setStr(&cfg.Blockchain.RPCURL, "BLOCKCHAIN_RPC_URL")
	setInt64(&cfg.Blockchain.ChainID, "BLOCKCHAIN_CHAIN_ID")
	setStr(&cfg.Blockchain.Network, "BLOCKCHAIN_NETWORK")
	setStr(&cfg.Blockchain.Contracts.MarketFactory, "MARKET_FACTORY_ADDRESS")
	setStr(&cfg.Blockchain.Contracts.FeeManager, "FEE_MANAGER_ADDRESS")
	setStr(&cfg.Blockchain.Contracts.SocialPredictions, "SOCIAL_PREDICTIONS_ADDRESS")
	setStr(&cfg.Blockchain.Contracts.CollateralToken, "COLLATERAL_TOKEN_ADDRESS")

	setBool(&cfg.Oracle.Enabled, "ORACLE_ENABLED")
	setStr(&cfg.Oracle.PrivateKey, "ORACLE_PRIVATE_KEY")
	setStr(&cfg.Oracle.Address, "ORACLE_ADDRESS")
	setMillis(&cfg.Oracle.CheckInterval, "ORACLE_CHECK_INTERVAL")

	setBool(&cfg.AI.Enabled, "AI_SERVICE_ENABLED")
	if port := os.Getenv("AI_SERVICE_PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			cfg.AI.BaseURL = "http://localhost:" + port
		}
	}
	setStr(&cfg.AI.BaseURL, "AI_SERVICE_URL")

	setStr(&cfg.Security.JWTSecret, "JWT_SECRET")
	setDuration(&cfg.Security.JWTExpiresIn, "JWT_EXPIRES_IN")

	setInt(&cfg.Social.CommentMinLength, "COMMENT_MIN_LENGTH")
	setInt(&cfg.Social.CommentMaxLength, "COMMENT_MAX_LENGTH")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := parseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// setMillis reads a duration given as an integer number of milliseconds.
func setMillis(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			dst.Duration = time.Duration(n) * time.Millisecond
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
