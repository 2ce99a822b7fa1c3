package authapi

import (
	"net/http"
	"time"

	"vidra/cmd/internal/auth/session"
)

// requireAuth verifies the access token and returns its claims.
// On failure it writes the 401 itself and returns ok=false.
func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.AccessClaims, bool) {
	tok := h.accessTokenFromRequest(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return session.AccessClaims{}, false
	}

	claims, err := h.sessions.VerifyAccess(tok, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid access token")
		return session.AccessClaims{}, false
	}
	return claims, true
}
