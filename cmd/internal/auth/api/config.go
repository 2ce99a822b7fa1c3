package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls account API behavior and security defaults.
type Config struct {
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64

	// MaxUploadBytes bounds multipart image uploads.
	MaxUploadBytes int64

	// Cookie transport for the token pair.
	AccessCookieName  string
	RefreshCookieName string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
//
// Optional:
//   - VIDRA_API_MAX_BODY_BYTES (default 1 MiB)
//   - VIDRA_API_MAX_UPLOAD_BYTES (default 8 MiB)
//   - VIDRA_API_COOKIE_DOMAIN
//   - VIDRA_API_COOKIE_SECURE (default true)
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:      envInt64("VIDRA_API_MAX_BODY_BYTES", 1<<20),
		MaxUploadBytes:    envInt64("VIDRA_API_MAX_UPLOAD_BYTES", 8<<20),
		AccessCookieName:  "access_token",
		RefreshCookieName: "refresh_token",
		CookiePath:        "/",
		CookieDomain:      strings.TrimSpace(os.Getenv("VIDRA_API_COOKIE_DOMAIN")),
		CookieSecure:      envBool("VIDRA_API_COOKIE_SECURE", true),
		CookieSameSite:    http.SameSiteLaxMode,
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 8 << 20
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
