package authapi

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"vidra/cmd/identity"
	"vidra/cmd/internal/media"
)

// Multipart endpoints. Uploads spool through the standard multipart temp
// files; RemoveAll cleans them up whether or not the media host accepted
// the object.

const multipartMemLimit = 4 << 20

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemLimit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return false
	}
	return true
}

func imageContentType(hdr *multipart.FileHeader) (string, bool) {
	ct := strings.TrimSpace(hdr.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		return "", false
	}
	return ct, true
}

// uploadFormImage uploads the named file field to the media host.
// required=false with a missing field returns a zero Asset and ok=true.
func (h *Handler) uploadFormImage(ctx context.Context, w http.ResponseWriter, r *http.Request, field string, required bool) (media.Asset, bool) {
	file, hdr, err := r.FormFile(field)
	if err != nil {
		if !required {
			return media.Asset{}, true
		}
		writeError(w, http.StatusBadRequest, field+" file is required")
		return media.Asset{}, false
	}
	defer func() { _ = file.Close() }()

	ct, ok := imageContentType(hdr)
	if !ok {
		writeError(w, http.StatusBadRequest, field+" must be an image")
		return media.Asset{}, false
	}

	asset, err := h.media.Upload(ctx, file, ct, hdr.Size)
	if err != nil {
		h.log.Error("media upload failed", "error", err, "field", field)
		writeError(w, http.StatusInternalServerError, "failed to upload "+field)
		return media.Asset{}, false
	}
	return asset, true
}

func (h *Handler) deleteMediaQuietly(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.media.Delete(ctx, key); err != nil {
		h.log.Warn("media delete failed", "error", err, "key", key)
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	username := strings.TrimSpace(r.FormValue("username"))
	displayName := strings.TrimSpace(r.FormValue("displayName"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if msg, ok := validateRegisterInput(username, displayName, email, password); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	avatar, ok := h.uploadFormImage(ctx, w, r, "avatar", true)
	if !ok {
		return
	}
	cover, ok := h.uploadFormImage(ctx, w, r, "cover", false)
	if !ok {
		h.deleteMediaQuietly(ctx, avatar.Key)
		return
	}

	account, err := h.store.CreateAccount(ctx, identity.CreateAccountInput{
		Username:    username,
		Email:       email,
		DisplayName: displayName,
		Password:    password,
		AvatarURL:   avatar.URL,
		AvatarKey:   avatar.Key,
		CoverURL:    cover.URL,
		CoverKey:    cover.Key,
		Now:         now,
	})
	if err != nil {
		// The account row is the source of truth; orphaned uploads get removed.
		h.deleteMediaQuietly(ctx, avatar.Key)
		h.deleteMediaQuietly(ctx, cover.Key)

		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "user with email or username already exists")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid registration input")
		default:
			h.log.Error("registration failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeData(w, http.StatusCreated, toAccountResponse(account), "user registered successfully")
}

func (h *Handler) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.handleUpdateImage(w, r, "avatar", identity.ImageAvatar, "avatar image updated successfully")
}

func (h *Handler) handleUpdateCover(w http.ResponseWriter, r *http.Request) {
	h.handleUpdateImage(w, r, "cover", identity.ImageCover, "cover image updated successfully")
}

func (h *Handler) handleUpdateImage(w http.ResponseWriter, r *http.Request, field string, kind identity.ImageKind, okMsg string) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	ctx := r.Context()
	now := time.Now().UTC()

	// Load the current row first so the replaced object can be deleted.
	current, err := h.store.GetByID(ctx, claims.AccountID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "user does not exist")
			return
		}
		h.log.Error("image update lookup failed", "error", err, "account_id", claims.AccountID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	asset, ok := h.uploadFormImage(ctx, w, r, field, true)
	if !ok {
		return
	}

	account, err := h.store.UpdateImage(ctx, claims.AccountID, kind, asset.URL, asset.Key, now)
	if err != nil {
		h.deleteMediaQuietly(ctx, asset.Key)
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "user does not exist")
			return
		}
		h.log.Error("image update failed", "error", err, "account_id", claims.AccountID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	oldKey := current.AvatarKey
	if kind == identity.ImageCover {
		oldKey = current.CoverKey
	}
	h.deleteMediaQuietly(ctx, oldKey)

	writeData(w, http.StatusOK, toAccountResponse(account), okMsg)
}
