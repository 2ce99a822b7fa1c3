package authapi

import (
	"net/http"
	"strings"

	"vidra/cmd/identity"
)

// Aggregation views over the subscription graph and watch history.

func (h *Handler) handleChannelProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is missing")
		return
	}

	profile, err := h.store.ChannelProfile(r.Context(), username, claims.AccountID)
	if err != nil {
		switch {
		case identity.IsNotFound(err):
			writeError(w, http.StatusNotFound, "channel does not exist")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "username is missing")
		default:
			h.log.Error("channel profile failed", "error", err, "username", username)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeData(w, http.StatusOK, toChannelResponse(profile), "user channel fetched successfully")
}

func (h *Handler) handleWatchHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	entries, err := h.store.WatchHistory(r.Context(), claims.AccountID)
	if err != nil {
		h.log.Error("watch history failed", "error", err, "account_id", claims.AccountID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]watchEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toWatchEntryResponse(e))
	}

	writeData(w, http.StatusOK, out, "watch history fetched successfully")
}
