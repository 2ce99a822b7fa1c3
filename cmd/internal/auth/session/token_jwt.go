package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the minimal identity envelope propagated across HTTP.
type AccessClaims struct {
	AccountID string
	Username  string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Issuer    string
}

// RefreshClaims carries only the subject. Refresh tokens never embed
// profile data; everything else is re-read from storage at rotation time.
type RefreshClaims struct {
	AccountID string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// TokenManager issues and verifies the two JWT kinds with distinct secrets.
type TokenManager interface {
	IssueAccess(accountID, username string, now time.Time) (token string, exp time.Time, err error)
	IssueRefresh(accountID string, now time.Time) (token string, exp time.Time, err error)
	VerifyAccess(token string, now time.Time) (AccessClaims, error)
	VerifyRefresh(token string, now time.Time) (RefreshClaims, error)
}

type hs256Manager struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clockSkew  time.Duration

	accessKey  []byte
	refreshKey []byte
}

// NewHS256Manager builds a TokenManager signing with HMAC-SHA256.
//
// Two independent secrets keep the token kinds in separate trust domains:
// a refresh token presented where an access token is expected fails
// signature verification outright.
func NewHS256Manager(cfg Config) (TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &hs256Manager{
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		clockSkew:  cfg.ClockSkew,
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
	}, nil
}

type accessJWTClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

func (m *hs256Manager) IssueAccess(accountID, username string, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	exp := now.Add(m.accessTTL)

	claims := accessJWTClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *hs256Manager) IssueRefresh(accountID string, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	exp := now.Add(m.refreshTTL)

	// The jti makes every mint unique: two rotations in the same second must
	// not produce byte-identical tokens, or the stored digest could not tell
	// the old session from the new one.
	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   accountID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *hs256Manager) parser(now time.Time) *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
}

func (m *hs256Manager) VerifyAccess(token string, now time.Time) (AccessClaims, error) {
	var claims accessJWTClaims

	parsed, err := m.parser(now).ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.accessKey, nil
	})
	if err != nil || !parsed.Valid {
		return AccessClaims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return AccessClaims{}, ErrInvalidToken
	}

	out := AccessClaims{
		AccountID: claims.Subject,
		Username:  claims.Username,
		Issuer:    claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func (m *hs256Manager) VerifyRefresh(token string, now time.Time) (RefreshClaims, error) {
	var claims jwt.RegisteredClaims

	parsed, err := m.parser(now).ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.refreshKey, nil
	})
	if err != nil {
		// Expiry and bad signature fold into one sentinel; the transport
		// layer must not reveal which one failed.
		return RefreshClaims{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return RefreshClaims{}, ErrInvalidToken
	}

	out := RefreshClaims{AccountID: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
