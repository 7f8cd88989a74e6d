package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "pulsedelta_dev", cfg.Database.Name)
	assert.Equal(t, int64(44787), cfg.Blockchain.ChainID)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window.Duration)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 3, cfg.Social.CommentMinLength)
	assert.Equal(t, 1000, cfg.Social.CommentMaxLength)
	assert.False(t, cfg.Analytics.StrictTokens)
}

func TestExampleFileMatchesDefaults(t *testing.T) {
	var cfg Config
	_, err := toml.DecodeFile(filepath.Join("..", "..", "config.example.toml"), &cfg)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "demo"
log_level = "debug"

[server]
port = 8080
cors_origins = ["https://app.example.com"]

[rate_limit]
window = "1m"
max_requests = 10

[security]
jwt_expires_in = "2d"

[analytics]
strict_tokens = true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "demo", cfg.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window.Duration)
	assert.Equal(t, 48*time.Hour, cfg.Security.JWTExpiresIn.Duration)
	assert.True(t, cfg.Analytics.StrictTokens)
	// Untouched sections keep their defaults.
	assert.Equal(t, "pulsedelta_dev", cfg.Database.Name)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = "), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("PORT", "7000")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_POOL_MAX", "25")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "60000")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("AI_SERVICE_ENABLED", "true")
	t.Setenv("AI_SERVICE_PORT", "5055")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("JWT_EXPIRES_IN", "7d")
	// Namespaced variables win over the bare ones.
	t.Setenv("PULSEDELTA_SERVER_PORT", "7100")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 25, cfg.Database.PoolMax)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.AI.Enabled)
	assert.Equal(t, "http://localhost:5055", cfg.AI.BaseURL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.JWTExpiresIn.Duration)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Server.Port = 0
	cfg.Database.PoolMin = 20
	cfg.Social.CommentMaxLength = 1
	cfg.Archive.Enabled = true
	cfg.Archive.Cron = "not a cron"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "server: port must be 1-65535, got 0")
	assert.Contains(t, msg, "database: pool_min must not exceed pool_max")
	assert.Contains(t, msg, "social: comment_max_length must not be below comment_min_length")
	assert.Contains(t, msg, "archive: s3.enabled is required for archiving")
	assert.Contains(t, msg, `archive: invalid cron "not a cron"`)
}

func TestValidateDemoSkipsDatabase(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "demo"
	cfg.Database.Host = ""
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "server"
	assert.ErrorContains(t, cfg.Validate(), "database: host must not be empty")
}

func TestSecurityCheck(t *testing.T) {
	t.Run("development tolerates defaults", func(t *testing.T) {
		cfg := Defaults()
		assert.NoError(t, SecurityCheck(&cfg, discard()))
	})

	t.Run("production rejects default secrets", func(t *testing.T) {
		cfg := Defaults()
		cfg.Environment = "production"
		cfg.Database.Password = "postgres"

		err := SecurityCheck(&cfg, discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt_secret must be changed in production")
		assert.Contains(t, err.Error(), "database: password is too weak")
	})

	t.Run("oracle key format", func(t *testing.T) {
		cfg := Defaults()
		cfg.Oracle.Enabled = true
		cfg.Oracle.PrivateKey = "abc"
		assert.ErrorContains(t, SecurityCheck(&cfg, discard()), "must start with 0x")

		cfg.Oracle.PrivateKey = "0xabc"
		assert.ErrorContains(t, SecurityCheck(&cfg, discard()), "64 hex characters")
	})

	t.Run("warnings are logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		cfg := Defaults()
		cfg.Environment = "production"
		cfg.Security.JWTSecret = "short-but-custom"
		cfg.Database.Password = "s3cure-and-long"

		require.NoError(t, SecurityCheck(&cfg, logger))
		assert.Contains(t, buf.String(), "jwt_secret is shorter than recommended")
		assert.Contains(t, buf.String(), "missing contract addresses")
		assert.Contains(t, buf.String(), "permissive CORS origin in production")
	})
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "hunter2"
	cfg.Oracle.PrivateKey = "0xdeadbeef"
	cfg.S3.SecretKey = "s3-secret"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Database.Password)
	assert.Equal(t, "***", out.Oracle.PrivateKey)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Security.JWTSecret)
	assert.Empty(t, out.AI.APIKey)

	out.Server.CORSOrigins[0] = "mutated"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "hunter2", cfg.Database.Password)
}
