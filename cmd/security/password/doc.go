// Package password provides password hashing and verification for Vidra.
//
// It implements Argon2id with a PHC-style encoded string format and includes:
//   - configurable Argon2id parameters (env overrides)
//   - password policy validation
//   - strict hash decoding with anti-DoS bounds during Verify
//
// Hash strings are treated as untrusted input during Verify: verification
// refuses hashes whose parameters exceed reasonable bounds.
package password
