package session

import (
	"os"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls access/refresh token TTLs, clock skew tolerance, and the two
// HS256 signing secrets. Access and refresh secrets must differ so a refresh
// token can never be replayed as an access token.
//
// This struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of both token kinds.
	Issuer string

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL defines the lifetime of refresh tokens.
	RefreshTokenTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// AccessSecret signs access tokens (HS256).
	AccessSecret string

	// RefreshSecret signs refresh tokens (HS256). Must differ from AccessSecret.
	RefreshSecret string
}

const minSecretLen = 32

// DefaultConfig returns secure default TTLs suitable for development.
// Secrets have no default and must always come from the environment.
func DefaultConfig() Config {
	return Config{
		Issuer:          "vidra",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 10 * 24 * time.Hour,
		ClockSkew:       30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - VIDRA_AUTH_ACCESS_SECRET (>= 32 bytes)
//   - VIDRA_AUTH_REFRESH_SECRET (>= 32 bytes, distinct from access secret)
//
// Optional (durations must be valid Go duration strings):
//   - VIDRA_AUTH_ISSUER
//   - VIDRA_AUTH_ACCESS_TTL
//   - VIDRA_AUTH_REFRESH_TTL
//   - VIDRA_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("VIDRA_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("VIDRA_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("VIDRA_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("VIDRA_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessSecret = os.Getenv("VIDRA_AUTH_ACCESS_SECRET")
	cfg.RefreshSecret = os.Getenv("VIDRA_AUTH_REFRESH_SECRET")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces secret and TTL invariants.
func (c Config) Validate() error {
	if len(c.AccessSecret) < minSecretLen || len(c.RefreshSecret) < minSecretLen {
		return ErrConfig
	}
	if c.AccessSecret == c.RefreshSecret {
		return ErrConfig
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ClockSkew < 0 {
		return ErrConfig
	}
	// A refresh token that outlives nothing is a config mistake.
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return ErrConfig
	}
	return nil
}
