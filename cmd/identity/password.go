package identity

import (
	"errors"

	"vidra/cmd/security/password"
)

// Password hashing for accounts.
//
// identity delegates all Argon2id work to cmd/security/password and only pins
// a historical baseline: minimum 8 characters, maximum 256, regardless of a
// weaker env policy. A stricter env policy is always honored.

// HashPassword returns a PHC-style Argon2id hash string.
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		// Invalid env is an operational error, not a weak fallback.
		return "", err
	}
	applyBaseline(&cfg)

	enc, err := cfg.Hash(plain)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort):
			return "", errors.New("password too short")
		case errors.Is(err, password.ErrPasswordTooLong):
			return "", errors.New("password too long")
		case errors.Is(err, password.ErrWeakPassword):
			return "", errors.New("weak password")
		default:
			return "", err
		}
	}
	return enc, nil
}

// VerifyPassword checks a password against a PHC Argon2id hash.
// Mismatch is (false, nil); only malformed hashes or config problems error.
func VerifyPassword(plain string, encodedPHC string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return false, err
	}
	applyBaseline(&cfg)

	ok, err := cfg.Verify(encodedPHC, plain)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			return false, errors.New("invalid argon2id hash format")
		}
		return false, err
	}
	return ok, nil
}

func applyBaseline(cfg *password.Config) {
	if cfg.Policy.MinLength < 8 {
		cfg.Policy.MinLength = 8
	}
	if cfg.Policy.MaxLength <= 0 {
		cfg.Policy.MaxLength = 256
	}
}
