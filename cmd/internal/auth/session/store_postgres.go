package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists refresh digests on the vidra.users row.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - SwapRefreshHash is one conditional UPDATE. Postgres row-level locking
//   makes the read-compare-write atomic; RowsAffected tells the caller
//   whether it won.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "vidra").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("session: empty schema")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "vidra",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) users() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

// SetRefreshHash unconditionally installs a new digest (login).
func (s *PostgresStore) SetRefreshHash(ctx context.Context, now time.Time, accountID, hash string) error {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(hash) == "" {
		return ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+`
		    SET refresh_token_hash = $1,
		        updated_at = $2
		  WHERE id = $3`,
		hash, now, accountID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidToken
	}
	return nil
}

// SwapRefreshHash is the rotation compare-and-swap.
func (s *PostgresStore) SwapRefreshHash(ctx context.Context, now time.Time, accountID, oldHash, newHash string) (bool, error) {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(oldHash) == "" || strings.TrimSpace(newHash) == "" {
		return false, ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+`
		    SET refresh_token_hash = $1,
		        updated_at = $2
		  WHERE id = $3
		    AND refresh_token_hash = $4`,
		newHash, now, accountID, oldHash,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// ClearRefreshHash removes the stored digest (logout). Idempotent.
func (s *PostgresStore) ClearRefreshHash(ctx context.Context, now time.Time, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+`
		    SET refresh_token_hash = NULL,
		        updated_at = $1
		  WHERE id = $2`,
		now, accountID,
	)
	return err
}

// HasAccount reports whether the account row exists.
func (s *PostgresStore) HasAccount(ctx context.Context, accountID string) (bool, error) {
	if strings.TrimSpace(accountID) == "" {
		return false, nil
	}

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM `+s.users()+` WHERE id = $1`,
		accountID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
