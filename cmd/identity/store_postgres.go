package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements account persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the account store (default "vidra").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
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
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const accountColumns = `id, username, username_norm, email, email_norm, display_name,
       COALESCE(avatar_url, ''), COALESCE(avatar_key, ''),
       COALESCE(cover_url, ''), COALESCE(cover_key, ''),
       created_at, updated_at`

// CreateAccount creates a new account row with a hashed password.
func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	displayName := strings.TrimSpace(in.DisplayName)

	if username == "" {
		return Account{}, pgInvalid(op, "username is required")
	}
	if email == "" {
		return Account{}, pgInvalid(op, "email is required")
	}
	if displayName == "" {
		return Account{}, pgInvalid(op, "display name is required")
	}
	if strings.TrimSpace(in.Password) == "" {
		return Account{}, pgInvalid(op, "password is required")
	}
	if strings.TrimSpace(in.AvatarURL) == "" {
		return Account{}, pgInvalid(op, "avatar is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	usernameNorm := NormalizeUsername(username)
	emailNorm := NormalizeEmail(email)

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return Account{}, pgInvalid(op, err.Error())
	}

	accountID, err := NewULID(now)
	if err != nil {
		return Account{}, err
	}

	users := pgIdent(s.schema, "users")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, username, username_norm, email, email_norm, display_name,
		     password_hash, avatar_url, avatar_key, cover_url, cover_key,
		     created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, $12)`,
		accountID,
		username,
		usernameNorm,
		email,
		emailNorm,
		displayName,
		pwHash,
		in.AvatarURL,
		in.AvatarKey,
		in.CoverURL,
		in.CoverKey,
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, err
	}

	return Account{
		ID:           accountID,
		Username:     username,
		UsernameNorm: usernameNorm,
		Email:        email,
		EmailNorm:    emailNorm,
		DisplayName:  displayName,
		AvatarURL:    in.AvatarURL,
		AvatarKey:    in.AvatarKey,
		CoverURL:     in.CoverURL,
		CoverKey:     in.CoverKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetByID loads an account row by ULID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetByID"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Account{}, pgInvalid(op, "missing account id")
	}

	users := pgIdent(s.schema, "users")

	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+users+` WHERE id = $1`,
		id,
	)
	out, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "user"}
		}
		return Account{}, err
	}
	return out, nil
}

// GetAuthByLogin resolves a handle or email (case-insensitive) to the account
// plus its password hash.
func (s *PostgresStore) GetAuthByLogin(ctx context.Context, usernameOrEmail string) (AccountAuth, error) {
	const op = "identity.GetAuthByLogin"

	if s == nil || s.pool == nil {
		return AccountAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return AccountAuth{}, err
	}
	key := strings.TrimSpace(usernameOrEmail)
	if key == "" {
		return AccountAuth{}, pgInvalid(op, "missing username or email")
	}

	// Both columns share the same normalization, so one key matches either.
	norm := NormalizeUsername(key)
	users := pgIdent(s.schema, "users")

	var (
		out    AccountAuth
		pwHash string
	)
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+`, password_hash
		   FROM `+users+`
		  WHERE username_norm = $1 OR email_norm = $1`,
		norm,
	)
	err := row.Scan(
		&out.Account.ID,
		&out.Account.Username,
		&out.Account.UsernameNorm,
		&out.Account.Email,
		&out.Account.EmailNorm,
		&out.Account.DisplayName,
		&out.Account.AvatarURL,
		&out.Account.AvatarKey,
		&out.Account.CoverURL,
		&out.Account.CoverKey,
		&out.Account.CreatedAt,
		&out.Account.UpdatedAt,
		&pwHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return AccountAuth{}, err
	}
	out.PasswordHash = pwHash
	return out, nil
}

// GetAuthByID loads the account plus its password hash by ULID.
func (s *PostgresStore) GetAuthByID(ctx context.Context, id string) (AccountAuth, error) {
	const op = "identity.GetAuthByID"

	if s == nil || s.pool == nil {
		return AccountAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return AccountAuth{}, err
	}
	if strings.TrimSpace(id) == "" {
		return AccountAuth{}, pgInvalid(op, "missing account id")
	}

	users := pgIdent(s.schema, "users")

	var out AccountAuth
	err := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+`, password_hash
		   FROM `+users+`
		  WHERE id = $1`,
		id,
	).Scan(
		&out.Account.ID,
		&out.Account.Username,
		&out.Account.UsernameNorm,
		&out.Account.Email,
		&out.Account.EmailNorm,
		&out.Account.DisplayName,
		&out.Account.AvatarURL,
		&out.Account.AvatarKey,
		&out.Account.CoverURL,
		&out.Account.CoverKey,
		&out.Account.CreatedAt,
		&out.Account.UpdatedAt,
		&out.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return AccountAuth{}, err
	}
	return out, nil
}

// UpdateProfile applies a partial update of display name and/or email.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (Account, error) {
	const op = "identity.UpdateProfile"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Account{}, pgInvalid(op, "missing account id")
	}
	if in.DisplayName == nil && in.Email == nil {
		return Account{}, pgInvalid(op, "nothing to update")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var displayName *string
	if in.DisplayName != nil {
		v := strings.TrimSpace(*in.DisplayName)
		if v == "" {
			return Account{}, pgInvalid(op, "display name must not be empty")
		}
		displayName = &v
	}
	var email, emailNorm *string
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		if v == "" {
			return Account{}, pgInvalid(op, "email must not be empty")
		}
		n := NormalizeEmail(v)
		email, emailNorm = &v, &n
	}

	users := pgIdent(s.schema, "users")

	row := s.pool.QueryRow(ctx,
		`UPDATE `+users+`
		    SET display_name = COALESCE($1, display_name),
		        email        = COALESCE($2, email),
		        email_norm   = COALESCE($3, email_norm),
		        updated_at   = $4
		  WHERE id = $5
		  RETURNING `+accountColumns,
		displayName, email, emailNorm, now, id,
	)
	out, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "user"}
		}
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, err
	}
	return out, nil
}

// UpdateImage replaces one media slot and returns the updated row.
func (s *PostgresStore) UpdateImage(ctx context.Context, id string, kind ImageKind, url, key string, now time.Time) (Account, error) {
	const op = "identity.UpdateImage"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Account{}, pgInvalid(op, "missing account id")
	}
	if strings.TrimSpace(url) == "" {
		return Account{}, pgInvalid(op, "missing image url")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var urlCol, keyCol string
	switch kind {
	case ImageAvatar:
		urlCol, keyCol = "avatar_url", "avatar_key"
	case ImageCover:
		urlCol, keyCol = "cover_url", "cover_key"
	default:
		return Account{}, pgInvalid(op, "unknown image kind")
	}

	users := pgIdent(s.schema, "users")

	row := s.pool.QueryRow(ctx,
		`UPDATE `+users+`
		    SET `+urlCol+` = $1,
		        `+keyCol+` = NULLIF($2, ''),
		        updated_at = $3
		  WHERE id = $4
		  RETURNING `+accountColumns,
		url, key, now, id,
	)
	out, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "user"}
		}
		return Account{}, err
	}
	return out, nil
}

// SetPasswordHash overwrites the stored password hash.
func (s *PostgresStore) SetPasswordHash(ctx context.Context, id string, hash string, now time.Time) error {
	const op = "identity.SetPasswordHash"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return pgInvalid(op, "missing account id")
	}
	if strings.TrimSpace(hash) == "" {
		return pgInvalid(op, "missing password hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	users := pgIdent(s.schema, "users")

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+users+`
		    SET password_hash = $1,
		        updated_at = $2
		  WHERE id = $3`,
		hash, now, id,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// ChannelProfile builds the channel aggregation view for a handle.
//
// Subscriber counts are computed with scalar subqueries against the
// subscriptions table; is_subscribed is an EXISTS check from the viewer's
// perspective. An empty viewerID yields is_subscribed=false.
func (s *PostgresStore) ChannelProfile(ctx context.Context, username string, viewerID string) (ChannelProfile, error) {
	const op = "identity.ChannelProfile"

	if s == nil || s.pool == nil {
		return ChannelProfile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return ChannelProfile{}, err
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return ChannelProfile{}, pgInvalid(op, "username is missing")
	}

	users := pgIdent(s.schema, "users")
	subs := pgIdent(s.schema, "subscriptions")

	var out ChannelProfile
	err := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+`,
		        (SELECT count(*) FROM `+subs+` sc WHERE sc.channel_id = u.id),
		        (SELECT count(*) FROM `+subs+` ss WHERE ss.subscriber_id = u.id),
		        EXISTS (
		            SELECT 1 FROM `+subs+` sv
		             WHERE sv.channel_id = u.id AND sv.subscriber_id = $2
		        )
		   FROM `+users+` u
		  WHERE u.username_norm = $1`,
		norm, viewerID,
	).Scan(
		&out.Account.ID,
		&out.Account.Username,
		&out.Account.UsernameNorm,
		&out.Account.Email,
		&out.Account.EmailNorm,
		&out.Account.DisplayName,
		&out.Account.AvatarURL,
		&out.Account.AvatarKey,
		&out.Account.CoverURL,
		&out.Account.CoverKey,
		&out.Account.CreatedAt,
		&out.Account.UpdatedAt,
		&out.SubscriberCount,
		&out.SubscribedToCount,
		&out.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChannelProfile{}, NotFoundError{Op: op, Resource: "channel"}
		}
		return ChannelProfile{}, err
	}
	return out, nil
}

// WatchHistory returns the viewer's watch history, newest first, joining each
// video's owner public fields.
func (s *PostgresStore) WatchHistory(ctx context.Context, accountID string) ([]WatchEntry, error) {
	const op = "identity.WatchHistory"

	if s == nil || s.pool == nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, pgInvalid(op, "missing account id")
	}

	users := pgIdent(s.schema, "users")
	videos := pgIdent(s.schema, "videos")
	history := pgIdent(s.schema, "watch_history")

	rows, err := s.pool.Query(ctx,
		`SELECT v.id, v.title, COALESCE(v.thumbnail_url, ''), v.duration_seconds,
		        v.views, v.published_at, h.watched_at,
		        o.id, o.username, o.display_name, COALESCE(o.avatar_url, '')
		   FROM `+history+` h
		   JOIN `+videos+` v ON v.id = h.video_id
		   JOIN `+users+` o ON o.id = v.owner_id
		  WHERE h.user_id = $1
		  ORDER BY h.watched_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WatchEntry, 0, 16)
	for rows.Next() {
		var e WatchEntry
		if err := rows.Scan(
			&e.VideoID,
			&e.Title,
			&e.ThumbnailURL,
			&e.DurationSeconds,
			&e.Views,
			&e.PublishedAt,
			&e.WatchedAt,
			&e.Owner.ID,
			&e.Owner.Username,
			&e.Owner.DisplayName,
			&e.Owner.AvatarURL,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- helpers ----

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.UsernameNorm,
		&a.Email,
		&a.EmailNorm,
		&a.DisplayName,
		&a.AvatarURL,
		&a.AvatarKey,
		&a.CoverURL,
		&a.CoverKey,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names, fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
