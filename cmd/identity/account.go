package identity

import (
	"context"
	"time"
)

// Account is Vidra's canonical security principal: one row in vidra.users.
//
// The refresh-token column that lives on the same row is deliberately absent
// here: it is owned exclusively by the session subsystem and never crosses
// this boundary.
type Account struct {
	ID           string
	Username     string
	UsernameNorm string
	Email        string
	EmailNorm    string
	DisplayName  string

	AvatarURL string
	AvatarKey string
	CoverURL  string
	CoverKey  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountAuth carries the password hash alongside the account for credential
// verification. The hash must never leave the auth path.
type AccountAuth struct {
	Account      Account
	PasswordHash string
}

// ImageKind selects which of the two media slots an update targets.
type ImageKind string

const (
	ImageAvatar ImageKind = "avatar"
	ImageCover  ImageKind = "cover"
)

// CreateAccountInput describes a registration request.
// All identity fields are required; cover image is optional.
type CreateAccountInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string

	AvatarURL string
	AvatarKey string
	CoverURL  string
	CoverKey  string

	Now time.Time
}

// UpdateProfileInput updates display name and/or email. Nil fields are left
// untouched; at least one must be set.
type UpdateProfileInput struct {
	DisplayName *string
	Email       *string
	Now         time.Time
}

// PublicProfile is the subset of account fields safe to embed in other
// resources (e.g., a video's owner).
type PublicProfile struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// ChannelProfile is the aggregation view for GET /channels/{username}.
type ChannelProfile struct {
	Account Account

	SubscriberCount   int64
	SubscribedToCount int64
	IsSubscribed      bool
}

// WatchEntry is one row of the watch-history view, newest first.
type WatchEntry struct {
	VideoID         string
	Title           string
	ThumbnailURL    string
	DurationSeconds int32
	Views           int64
	PublishedAt     time.Time
	WatchedAt       time.Time

	Owner PublicProfile
}

// Store is the account persistence boundary.
//
// Implementations map storage-level failures to the sentinel kinds in this
// package; callers branch with IsConflict/IsNotFound/IsInvalidInput only.
type Store interface {
	// CreateAccount creates a new account with a hashed password.
	// Duplicate handle or email yields a ConflictError naming the field.
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)

	// GetByID loads an account by ULID.
	GetByID(ctx context.Context, id string) (Account, error)

	// GetAuthByLogin resolves a handle-or-email lookup key (case-insensitive)
	// to the account plus its password hash.
	GetAuthByLogin(ctx context.Context, usernameOrEmail string) (AccountAuth, error)

	// GetAuthByID loads the account plus its password hash by ULID.
	GetAuthByID(ctx context.Context, id string) (AccountAuth, error)

	// UpdateProfile applies a partial profile update and returns the new row.
	UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (Account, error)

	// UpdateImage replaces one media slot (URL + media-host key) and returns
	// the new row.
	UpdateImage(ctx context.Context, id string, kind ImageKind, url, key string, now time.Time) (Account, error)

	// SetPasswordHash overwrites the stored password hash.
	SetPasswordHash(ctx context.Context, id string, hash string, now time.Time) error

	// ChannelProfile builds the subscriber aggregation view for a handle,
	// from the perspective of viewerID.
	ChannelProfile(ctx context.Context, username string, viewerID string) (ChannelProfile, error)

	// WatchHistory returns the viewer's watch history, newest first, with
	// each video's owner public fields joined in.
	WatchHistory(ctx context.Context, accountID string) ([]WatchEntry, error)
}
