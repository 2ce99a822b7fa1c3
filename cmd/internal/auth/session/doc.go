// Package session implements Vidra's session authority.
//
// It provides the single-session-per-account model with refresh-token
// rotation, reuse rejection, and revocation.
//
// Access and refresh tokens are both HS256 JWTs signed with distinct secrets.
// The current refresh token is stored hashed on the account row
// (HMAC-SHA256 when VIDRA_TOKEN_HMAC_KEY is set; otherwise SHA-256 for
// dev/back-compat). Rotation swaps the stored hash with a single conditional
// update so that concurrent rotations have exactly one winner.
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
