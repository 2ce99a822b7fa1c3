package authapi

import (
	"net/http"
	"strings"
	"time"

	"vidra/cmd/internal/auth/session"
)

// Cookie transport for the token pair. Both cookies are httpOnly; JavaScript
// never needs to read them because the body carries the same values.

func (h *Handler) setAuthCookies(w http.ResponseWriter, pair session.Pair) {
	h.setCookie(w, h.cfg.AccessCookieName, pair.AccessToken, pair.AccessExp)
	h.setCookie(w, h.cfg.RefreshCookieName, pair.RefreshToken, pair.RefreshExp)
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	h.expireCookie(w, h.cfg.AccessCookieName)
	h.expireCookie(w, h.cfg.RefreshCookieName)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	if h == nil || w == nil || name == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	if h == nil || w == nil || strings.TrimSpace(name) == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

// refreshTokenFromRequest prefers the cookie and falls back to the JSON body.
func (h *Handler) refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(h.cfg.RefreshCookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	if r.ContentLength == 0 {
		return ""
	}
	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}

// accessTokenFromRequest prefers the Authorization header and falls back to
// the access cookie.
func (h *Handler) accessTokenFromRequest(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
		return ""
	}
	if c, err := r.Cookie(h.cfg.AccessCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
