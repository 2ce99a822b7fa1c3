package session

import "errors"

var (
	// ErrNoToken is returned when no refresh token accompanies a request
	// that requires one.
	ErrNoToken = errors.New("missing refresh token")

	// ErrInvalidToken is returned when a token fails signature or claim
	// verification, or does not resolve to an existing account.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenReused is returned when a structurally valid refresh token no
	// longer matches the stored one. Either it was already rotated or the
	// session was revoked; callers must not distinguish the two.
	ErrTokenReused = errors.New("refresh token is expired or used")

	// ErrIssueFailed is returned when token generation or persistence fails
	// during login. The cause is logged, never surfaced.
	ErrIssueFailed = errors.New("failed to issue tokens")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
