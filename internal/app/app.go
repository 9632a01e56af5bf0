// Package app wires a goCred Engine, its stores and the HTTP API into a
// runnable server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/internal/httpapi"
	"github.com/MrEthical07/goCred/internal/serverconfig"
	"github.com/MrEthical07/goCred/metrics/export/prometheus"
	"github.com/MrEthical07/goCred/middleware"
	"github.com/MrEthical07/goCred/notify"
	"github.com/MrEthical07/goCred/store/memory"
	"github.com/MrEthical07/goCred/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// App owns every long-lived resource of the server.
type App struct {
	cfg    *serverconfig.Config
	logger *slog.Logger

	engine *goCred.Engine
	server *http.Server
	pruner *postgres.ResetTokenStore

	closers []func() error
}

// New connects to the backing services and builds the Engine. On error every
// resource opened so far is released.
func New(ctx context.Context, cfg *serverconfig.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg
	rdb, err := a.openRedis(ctx)
	if err != nil {
		return err
	}

	builder := goCred.New().
		WithConfig(a.engineConfig()).
		WithRedis(rdb).
		WithLogger(a.logger)

	if cfg.DatabaseDSN != "" {
		db, err := a.openPostgres(ctx)
		if err != nil {
			return err
		}
		builder.WithUserStore(postgres.NewUserStore(db))
		if cfg.ResetStore == "postgres" {
			a.pruner = postgres.NewResetTokenStore(db)
			builder.WithResetTokenStore(a.pruner)
		}
	} else {
		a.logger.Warn("goCred: no database dsn; users are kept in memory")
		builder.WithUserStore(memory.NewUserStore())
	}

	builder.WithNotifier(a.notifier(rdb))

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	a.closers = append(a.closers, func() error { engine.Close(); return nil })

	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// notifier returns the configured delivery channels. "both" logs the link
// and appends it to the stream, failing if either fails.
func (a *App) notifier(rdb redis.UniversalClient) goCred.Notifier {
	stream := notify.NewStreamNotifier(rdb, notify.StreamConfig{Stream: a.cfg.NotifyStream, MaxLen: 10000})
	switch a.cfg.Notifier {
	case "stream":
		return stream
	case "both":
		return notify.Multi{notify.NewLogNotifier(a.logger), stream}
	default:
		return notify.NewLogNotifier(a.logger)
	}
}

func (a *App) engineConfig() goCred.Config {
	c := goCred.DefaultConfig()
	c.JWT.Secret = []byte(a.cfg.JWTSecret)
	c.JWT.AccessTTL = a.cfg.AccessTTL
	c.JWT.RefreshTTL = a.cfg.RefreshTTL
	c.JWT.Issuer = a.cfg.Issuer
	c.Recovery.ResetURLBase = a.cfg.ResetURLBase
	c.Recovery.TokenTTL = a.cfg.ResetTokenTTL
	c.Recovery.RedisPrefix = a.cfg.RedisPrefix
	c.Audit.Enabled = a.cfg.AuditEnabled
	return c
}

func (a *App) handler() http.Handler {
	extra := map[string]http.Handler{}
	if a.cfg.MetricsPath != "" {
		extra["GET "+a.cfg.MetricsPath] = prometheus.NewExporter(a.engine).Handler()
	}

	api := httpapi.New(a.engine, httpapi.WithLogger(a.logger)).Handler(extra)
	return middleware.RequestContext(a.cfg.TrustProxy)(httpapi.AccessLog(a.logger)(api))
}

func (a *App) openRedis(ctx context.Context) (redis.UniversalClient, error) {
	addr := a.cfg.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		a.closers = append(a.closers, func() error { mr.Close(); return nil })
		addr = mr.Addr()
		a.logger.Warn("goCred: no redis address; using embedded redis", "addr", addr)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	a.closers = append(a.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (a *App) openPostgres(ctx context.Context) (*sql.DB, error) {
	db, err := postgres.Open(ctx, a.cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := postgres.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.pruner != nil && a.cfg.PruneInterval > 0 {
		go a.prune(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("goCred: listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	a.logger.Info("goCred: shutting down")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// prune deletes reset tokens whose retention window has passed.
func (a *App) prune(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PruneInterval)
	defer ticker.Stop()

	retention := goCred.DefaultConfig().Recovery.ExpiredRetention
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.pruner.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				a.logger.Warn("goCred: reset token prune failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Debug("goCred: pruned reset tokens", "count", n)
			}
		}
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("goCred: close failed", "error", err)
		}
	}
	a.closers = nil
}

// Handler exposes the routed API, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}
