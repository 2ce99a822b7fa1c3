package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vidra/cmd/security/token"
)

// Service implements the high-level session operations for Vidra.
//
// It issues token pairs, rotates refresh tokens with reuse rejection, and
// revokes sessions. Rotation safety rests entirely on the store's
// compare-and-swap; the service itself holds no locks.
type Service struct {
	cfg    Config
	tokens TokenManager
	store  Store
	log    *slog.Logger
}

// Pair is the result of issuing or rotating a session.
type Pair struct {
	AccessToken string
	AccessExp   time.Time

	RefreshToken string
	RefreshExp   time.Time
}

// NewService constructs a Service.
func NewService(cfg Config, store Store, tokens TokenManager, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, tokens: tokens, log: log}
}

// Issue creates a fresh token pair for an account and persists the refresh
// digest, replacing any previous session (login displaces login).
//
// Every internal failure folds into ErrIssueFailed: the caller renders a
// generic 500 and the cause stays in the log.
func (s *Service) Issue(ctx context.Context, now time.Time, accountID, username string) (Pair, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	access, accessExp, err := s.tokens.IssueAccess(accountID, username, now)
	if err != nil {
		s.log.Error("access token issue failed", "error", err, "account_id", accountID)
		return Pair{}, ErrIssueFailed
	}

	refresh, refreshExp, err := s.tokens.IssueRefresh(accountID, now)
	if err != nil {
		s.log.Error("refresh token issue failed", "error", err, "account_id", accountID)
		return Pair{}, ErrIssueFailed
	}

	if err := s.store.SetRefreshHash(ctx, now, accountID, token.HashRefreshTokenHex(refresh)); err != nil {
		s.log.Error("refresh digest persist failed", "error", err, "account_id", accountID)
		return Pair{}, ErrIssueFailed
	}

	return Pair{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

// Rotate exchanges a refresh token for a fresh pair.
//
// Order of checks:
//  1. empty input -> ErrNoToken
//  2. signature/expiry/claims -> ErrInvalidToken
//  3. account existence -> ErrInvalidToken
//  4. stored-digest compare-and-swap -> ErrTokenReused on mismatch
//
// The CAS is the replay defense: after one rotation wins, every holder of
// the old token (including the legitimate client retrying) gets
// ErrTokenReused and must log in again.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshPlain string) (Pair, error) {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" {
		return Pair{}, ErrNoToken
	}
	// Sanity bound against pathological inputs.
	if len(refreshPlain) > 4096 {
		return Pair{}, ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claims, err := s.tokens.VerifyRefresh(refreshPlain, now)
	if err != nil {
		return Pair{}, ErrInvalidToken
	}

	exists, err := s.store.HasAccount(ctx, claims.AccountID)
	if err != nil {
		s.log.Error("account lookup failed during rotation", "error", err)
		return Pair{}, err
	}
	if !exists {
		return Pair{}, ErrInvalidToken
	}

	newRefresh, refreshExp, err := s.tokens.IssueRefresh(claims.AccountID, now)
	if err != nil {
		s.log.Error("refresh token issue failed", "error", err, "account_id", claims.AccountID)
		return Pair{}, ErrIssueFailed
	}

	oldHash := token.HashRefreshTokenHex(refreshPlain)
	newHash := token.HashRefreshTokenHex(newRefresh)

	swapped, err := s.store.SwapRefreshHash(ctx, now, claims.AccountID, oldHash, newHash)
	if err != nil {
		s.log.Error("refresh digest swap failed", "error", err, "account_id", claims.AccountID)
		return Pair{}, err
	}
	if !swapped {
		s.log.Warn("stale refresh token rejected", "account_id", claims.AccountID)
		return Pair{}, ErrTokenReused
	}

	// Access token is minted only for the rotation winner.
	access, accessExp, err := s.tokens.IssueAccess(claims.AccountID, "", now)
	if err != nil {
		s.log.Error("access token issue failed", "error", err, "account_id", claims.AccountID)
		return Pair{}, ErrIssueFailed
	}

	return Pair{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: newRefresh,
		RefreshExp:   refreshExp,
	}, nil
}

// Revoke clears the stored refresh digest for an account (logout).
// Idempotent: revoking an account with no live session succeeds.
func (s *Service) Revoke(ctx context.Context, now time.Time, accountID string) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return s.store.ClearRefreshHash(ctx, now, accountID)
}

// VerifyAccess verifies an access token and returns its claims.
func (s *Service) VerifyAccess(tokenStr string, now time.Time) (AccessClaims, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return s.tokens.VerifyAccess(tokenStr, now)
}
