// Package identity implements Vidra's account foundation.
//
// It contains the Account model, normalization rules, ULID ids, password
// hashing wrappers, the persistence boundary (Store), and the read-side
// aggregation views (channel profile, watch history).
//
// This package is intentionally dependency-light and security-first.
package identity
