package session

import (
	"context"
	"time"
)

// Store abstracts persistence of the per-account refresh-token digest.
//
// The digest lives on the account row itself; an account holds at most one
// live refresh token. Implementations must make Swap a single atomic
// compare-and-swap so two concurrent rotations of the same token cannot
// both succeed.
type Store interface {
	// SetRefreshHash unconditionally installs a new digest (login).
	// Returns identity-style not-found semantics when the account is missing.
	SetRefreshHash(ctx context.Context, now time.Time, accountID, hash string) error

	// SwapRefreshHash replaces oldHash with newHash only if oldHash is the
	// currently stored digest. swapped=false means the caller lost the race
	// or presented a stale token.
	SwapRefreshHash(ctx context.Context, now time.Time, accountID, oldHash, newHash string) (swapped bool, err error)

	// ClearRefreshHash removes the stored digest (logout). Idempotent:
	// clearing an already-clear account succeeds.
	ClearRefreshHash(ctx context.Context, now time.Time, accountID string) error

	// HasAccount reports whether the account row exists.
	HasAccount(ctx context.Context, accountID string) (bool, error)
}
