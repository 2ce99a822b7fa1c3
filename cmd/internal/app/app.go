// Package app wires the vidra server runtime: config, logging, metrics,
// database pool, and the account API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vidra/cmd/identity"
	authapi "vidra/cmd/internal/auth/api"
	"vidra/cmd/internal/auth/session"
	"vidra/cmd/internal/media"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the server runtime. It owns the HTTP server wiring and the
// lifecycle of the database pool.
type App struct {
	cfg Config
	log Logger

	metrics *Metrics

	dbPool    *pgxpool.Pool
	dbEnabled bool

	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
//
// Without VIDRA_DATABASE_URL the app starts in health-check-only mode:
// the account API needs persistent storage and is not registered.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: NewMetrics(),
	}

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.health_only_mode")
		return a, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db pool: %w", err)
	}

	auth, err := newAuthHandler(ctx, log, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a.dbPool = pool
	a.dbEnabled = true
	a.auth = auth

	log.Info("db.enabled.postgres_store")
	return a, nil
}

func newAuthHandler(ctx context.Context, log Logger, pool *pgxpool.Pool) (*authapi.Handler, error) {
	accounts, err := identity.NewPostgresStore(pool)
	if err != nil {
		return nil, fmt.Errorf("identity store: %w", err)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	tokens, err := session.NewHS256Manager(sessCfg)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	sessStore, err := session.NewPostgresStore(pool)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	sessions := session.NewService(sessCfg, sessStore, tokens, log)

	mediaCfg, err := media.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("media config: %w", err)
	}
	mediaClient, err := media.NewS3Client(ctx, mediaCfg)
	if err != nil {
		return nil, fmt.Errorf("media client: %w", err)
	}

	return authapi.NewHandler(log, authapi.LoadConfigFromEnv(), accounts, sessions, mediaClient)
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.metrics, a.auth)

	var handler http.Handler = WithSecurityHeaders(mux)
	handler = WithMetrics(handler, a.metrics)
	if len(a.cfg.CORSAllowedOrigins) > 0 {
		handler = WithCORS(handler, a.cfg, a.log)
	}
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
