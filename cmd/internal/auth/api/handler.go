package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidra/cmd/identity"
	"vidra/cmd/internal/auth/session"
	"vidra/cmd/internal/media"
)

// Handler wires HTTP account endpoints to the identity store, session
// service, and media host.
type Handler struct {
	log *slog.Logger
	cfg Config

	store    identity.Store
	sessions *session.Service
	media    media.Client
}

// NewHandler constructs an account API Handler.
func NewHandler(log *slog.Logger, cfg Config, store identity.Store, sessions *session.Service, mediaClient media.Client) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("authapi: nil identity store")
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if mediaClient == nil {
		return nil, errors.New("authapi: nil media client")
	}
	return &Handler{
		log:      log,
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		media:    mediaClient,
	}, nil
}

// Register wires account routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/v1/users/register", h.handleRegister)
	mux.HandleFunc("POST /api/v1/users/login", h.handleLogin)
	mux.HandleFunc("POST /api/v1/users/logout", h.handleLogout)
	mux.HandleFunc("POST /api/v1/users/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/v1/users/change-password", h.handleChangePassword)
	mux.HandleFunc("GET /api/v1/users/me", h.handleMe)
	mux.HandleFunc("PATCH /api/v1/users/profile", h.handleUpdateProfile)
	mux.HandleFunc("PATCH /api/v1/users/avatar", h.handleUpdateAvatar)
	mux.HandleFunc("PATCH /api/v1/users/cover", h.handleUpdateCover)
	mux.HandleFunc("GET /api/v1/channels/{username}", h.handleChannelProfile)
	mux.HandleFunc("GET /api/v1/users/history", h.handleWatchHistory)
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg, ok := validateLoginInput(req.Username, req.Email, req.Password); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	loginKey := strings.TrimSpace(req.Username)
	if loginKey == "" {
		loginKey = strings.TrimSpace(req.Email)
	}

	ctx := r.Context()
	now := time.Now().UTC()

	auth, err := h.store.GetAuthByLogin(ctx, loginKey)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "user does not exist")
			return
		}
		h.log.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	okPw, err := identity.VerifyPassword(req.Password, auth.PasswordHash)
	if err != nil {
		h.log.Error("password verify failed", "error", err, "account_id", auth.Account.ID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !okPw {
		writeError(w, http.StatusUnauthorized, "invalid user credentials")
		return
	}

	pair, err := h.sessions.Issue(ctx, now, auth.Account.ID, auth.Account.Username)
	if err != nil {
		h.log.Error("session issue failed", "error", err, "account_id", auth.Account.ID)
		writeError(w, http.StatusInternalServerError, "failed to issue tokens")
		return
	}

	h.setAuthCookies(w, pair)
	writeData(w, http.StatusOK, loginResponse{
		User:         toAccountResponse(auth.Account),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "user logged in successfully")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Revoke(r.Context(), time.Now().UTC(), claims.AccountID); err != nil {
		h.log.Error("logout failed", "error", err, "account_id", claims.AccountID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.clearAuthCookies(w)
	writeData(w, http.StatusOK, struct{}{}, "user logged out")
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.refreshTokenFromRequest(w, r)
	if refreshToken == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	pair, err := h.sessions.Rotate(r.Context(), time.Now().UTC(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoToken):
			writeError(w, http.StatusUnauthorized, "unauthorized request")
		case errors.Is(err, session.ErrTokenReused):
			writeError(w, http.StatusUnauthorized, "refresh token is expired or used")
		case errors.Is(err, session.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			h.log.Error("refresh rotation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.setAuthCookies(w, pair)
	writeData(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "access token refreshed")
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := validateChangePasswordInput(req.OldPassword, req.NewPassword); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	auth, err := h.store.GetAuthByID(ctx, claims.AccountID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "user does not exist")
			return
		}
		h.log.Error("password change lookup failed", "error", err, "account_id", claims.AccountID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	okPw, err := identity.VerifyPassword(req.OldPassword, auth.PasswordHash)
	if err != nil {
		h.log.Error("password verify failed", "error", err, "account_id", claims.AccountID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !okPw {
		writeError(w, http.StatusUnauthorized, "invalid old password")
		return
	}

	newHash, err := identity.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, "new password is not acceptable")
		return
	}
	if err := h.store.SetPasswordHash(ctx, claims.AccountID, newHash, now); err != nil {
		h.log.Error("password update failed", "error", err, "account_id", claims.AccountID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The live refresh token stays valid across a password change. Clients
	// that want a full reset call logout afterwards.
	writeData(w, http.StatusOK, struct{}{}, "password changed successfully")
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	a, err := h.store.GetByID(r.Context(), claims.AccountID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "user does not exist")
			return
		}
		h.log.Error("me lookup failed", "error", err, "account_id", claims.AccountID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusOK, toAccountResponse(a), "user fetched successfully")
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := validateUpdateProfileInput(req); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	a, err := h.store.UpdateProfile(r.Context(), claims.AccountID, identity.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email already in use")
		case identity.IsNotFound(err):
			writeError(w, http.StatusNotFound, "user does not exist")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid profile update")
		default:
			h.log.Error("profile update failed", "error", err, "account_id", claims.AccountID)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeData(w, http.StatusOK, toAccountResponse(a), "account details updated successfully")
}
