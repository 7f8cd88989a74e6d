package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// DefaultJWTSecret is the placeholder secret shipped in the defaults.
const DefaultJWTSecret = "change-this-secret-in-production"

var (
	defaultJWTSecrets = []string{DefaultJWTSecret, "your-secret-here", "secret", "jwt-secret"}
	weakDBPasswords   = []string{"password", "admin", "123456", "postgres"}
	permissiveOrigins = []string{"*", "http://localhost:3000"}
)

// minJWTSecretLength is the recommended minimum JWT secret length.
const minJWTSecretLength = 32

// SecurityCheck inspects cfg for insecure settings. Advisory findings are
// logged as warnings; critical findings are returned as one error. Callers
// should treat the error as fatal in production.
func SecurityCheck(cfg *Config, logger *slog.Logger) error {
	var errs []string
	prod := cfg.IsProduction()

	// JWT secret
	if prod {
		if slices.Contains(defaultJWTSecrets, cfg.Security.JWTSecret) {
			errs = append(errs, "security: jwt_secret must be changed in production")
		} else if len(cfg.Security.JWTSecret) < minJWTSecretLength {
			logger.Warn("config: jwt_secret is shorter than recommended",
				slog.Int("min_length", minJWTSecretLength),
			)
		}
	}

	// Database credentials; a DSN carries its own.
	if prod && cfg.NeedsDatabase() && cfg.Database.DSN == "" {
		switch {
		case cfg.Database.Password == "":
			errs = append(errs, "database: password must be set in production")
		case slices.Contains(weakDBPasswords, strings.ToLower(cfg.Database.Password)):
			errs = append(errs, "database: password is too weak")
		}
	}

	// Blockchain
	var missing []string
	for _, c := range []struct{ name, addr string }{
		{"market_factory", cfg.Blockchain.Contracts.MarketFactory},
		{"fee_manager", cfg.Blockchain.Contracts.FeeManager},
		{"social_predictions", cfg.Blockchain.Contracts.SocialPredictions},
		{"collateral_token", cfg.Blockchain.Contracts.CollateralToken},
	} {
		if c.addr == "" {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		logger.Warn("config: missing contract addresses, some features may not work",
			slog.String("contracts", strings.Join(missing, ", ")),
		)
	}
	if cfg.Blockchain.RPCURL == "" {
		errs = append(errs, "blockchain: rpc_url is required")
	}

	// Oracle
	if cfg.Oracle.Enabled && cfg.Oracle.EncryptedKeyPath == "" {
		key := cfg.Oracle.PrivateKey
		switch {
		case key == "":
			errs = append(errs, "oracle: private_key is required when the oracle is enabled")
		case !strings.HasPrefix(key, "0x"):
			errs = append(errs, "oracle: private_key must start with 0x")
		case len(key) != 66:
			errs = append(errs, "oracle: private_key must be 64 hex characters (+ 0x prefix)")
		}
	}

	// CORS
	if prod {
		for _, origin := range cfg.Server.CORSOrigins {
			if slices.Contains(permissiveOrigins, origin) {
				logger.Warn("config: permissive CORS origin in production",
					slog.String("origin", origin),
				)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("security check failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
