package app

import (
	"errors"

	"vidra/cmd/security/token"
)

// ValidateSecurityConfig enforces the security policy at startup.
// Fail-fast on purpose: silently falling back to weaker refresh-token
// hashing in production is not acceptable.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// Minimum 32 bytes for an HMAC-SHA256 secret, measured as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: VIDRA_REQUIRE_TOKEN_HMAC=true but VIDRA_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: VIDRA_REQUIRE_TOKEN_HMAC=true but VIDRA_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	// Hard assertion that the hasher actually runs in HMAC mode, guarding
	// against a future change that reintroduces a plain-SHA fallback.
	if !token.HMACEnabled() {
		return errors.New("security policy: VIDRA_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
