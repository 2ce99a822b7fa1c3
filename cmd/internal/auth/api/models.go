package authapi

import "time"

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	Email       *string `json:"email"`
}

// accountResponse never carries the password hash or refresh digest.
type accountResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatar,omitempty"`
	CoverURL    string    `json:"coverImage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type loginResponse struct {
	User         accountResponse `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type channelResponse struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	DisplayName       string `json:"displayName"`
	Email             string `json:"email"`
	AvatarURL         string `json:"avatar,omitempty"`
	CoverURL          string `json:"coverImage,omitempty"`
	SubscriberCount   int64  `json:"subscriberCount"`
	SubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
}

type watchOwnerResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatar,omitempty"`
}

type watchEntryResponse struct {
	VideoID         string             `json:"videoId"`
	Title           string             `json:"title"`
	ThumbnailURL    string             `json:"thumbnail,omitempty"`
	DurationSeconds int32              `json:"duration"`
	Views           int64              `json:"views"`
	PublishedAt     time.Time          `json:"publishedAt"`
	WatchedAt       time.Time          `json:"watchedAt"`
	Owner           watchOwnerResponse `json:"owner"`
}
