// Package token provides server-side hashing for bearer tokens.
//
// It is the single source of truth for how refresh tokens are stored at rest:
// the plain token never touches the database, only a stable 64-char hex digest
// that can be compared byte-for-byte.
//
// Modes:
//   - HMAC-SHA256(token, key) when VIDRA_TOKEN_HMAC_KEY is configured.
//   - SHA-256(token) as a dev/back-compat fallback when no key is set.
//
// Deployments that set VIDRA_REQUIRE_TOKEN_HMAC=true must provide a key of at
// least 32 bytes; startup validation rejects the SHA fallback in that mode.
package token
