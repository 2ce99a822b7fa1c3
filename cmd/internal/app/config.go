package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, VIDRA_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh-token
	// hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("VIDRA_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("VIDRA_LOG_LEVEL", "info"),
		LogFormat: EnvString("VIDRA_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("VIDRA_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("VIDRA_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("VIDRA_HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       EnvDuration("VIDRA_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("VIDRA_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("VIDRA_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("VIDRA_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("VIDRA_DB_MIN_CONNS", 0),

		CORSAllowedOrigins:   EnvStringSlice("VIDRA_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("VIDRA_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("VIDRA_CORS_MAX_AGE_SECONDS", 600),

		ReadinessRequireDB: EnvBool("VIDRA_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("VIDRA_REQUIRE_TOKEN_HMAC", false),
	}
}
