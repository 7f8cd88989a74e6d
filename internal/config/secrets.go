package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Server.MetricsAPIKey)

	redact(&out.Database.DSN)
	redact(&out.Database.Password)

	redact(&out.Redis.URL)
	redact(&out.Redis.Password)

	redact(&out.Oracle.PrivateKey)
	redact(&out.Oracle.KeyPassword)

	redact(&out.AI.APIKey)
	redact(&out.Security.JWTSecret)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
