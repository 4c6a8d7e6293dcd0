// Package app wires all Callline subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithDirectory, WithTelephony, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/attendly/callline/internal/call"
	"github.com/attendly/callline/internal/config"
	"github.com/attendly/callline/internal/directory"
	"github.com/attendly/callline/internal/health"
	"github.com/attendly/callline/internal/observe"
	"github.com/attendly/callline/internal/session"
	"github.com/attendly/callline/internal/telephony"
	"github.com/attendly/callline/internal/tools"
	"github.com/attendly/callline/internal/transport"
	"github.com/attendly/callline/pkg/provider/llm"
)

// shutdownTimeout bounds the HTTP server drain during Run's teardown.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes and serves the call orchestration
// endpoint.
type App struct {
	cfg      *config.Config
	logLevel *slog.LevelVar

	sessions   *session.Store
	dir        directory.Store
	gateway    telephony.Gateway
	provider   llm.Provider
	dispatcher *tools.Dispatcher
	router     *call.Router
	metrics    *observe.Metrics

	pool       *pgxpool.Pool
	httpServer *http.Server
	watcher    *config.Watcher

	configPath string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDirectory injects a directory store instead of creating one from config.
func WithDirectory(s directory.Store) Option {
	return func(a *App) { a.dir = s }
}

// WithTelephony injects a telephony gateway instead of the configured one.
func WithTelephony(g telephony.Gateway) Option {
	return func(a *App) { a.gateway = g }
}

// WithMetrics injects a metrics instance instead of the process-wide default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConfigWatch enables hot-reload by polling the given config file while
// the app runs.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// New creates an App by wiring all subsystems together. The provider and
// gateway come from main (populated via the config registry); logLevel is the
// process log level variable so config hot-reload can adjust verbosity.
func New(ctx context.Context, cfg *config.Config, provider llm.Provider, gateway telephony.Gateway, logLevel *slog.LevelVar, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		logLevel: logLevel,
		provider: provider,
		gateway:  gateway,
		sessions: session.NewStore(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initDirectory(ctx); err != nil {
		return nil, err
	}

	a.dispatcher = tools.NewDispatcher(tuningFromConfig(cfg.Call), tools.DefaultCatalog()...)
	a.router = call.NewRouter(call.Deps{
		Sessions:   a.sessions,
		Directory:  a.dir,
		Telephony:  a.gateway,
		Provider:   a.provider,
		Dispatcher: a.dispatcher,
		Metrics:    a.metrics,
	}, settingsFromConfig(cfg.Call))

	a.initHTTPServer()
	return a, nil
}

// initDirectory connects the configured directory backend. An empty DSN
// selects the in-memory store, which is intended for development and tests
// only: records do not survive a restart.
func (a *App) initDirectory(ctx context.Context) error {
	if a.dir != nil {
		return nil
	}
	dsn := a.cfg.Directory.PostgresDSN
	if dsn == "" {
		slog.Warn("no directory DSN configured, using in-memory store")
		a.dir = directory.NewMemStore()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("app: create directory pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("app: ping directory database: %w", err)
	}

	store := directory.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("app: migrate directory schema: %w", err)
	}

	a.pool = pool
	a.dir = store
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

// initHTTPServer assembles the mux: the call WebSocket endpoint, health
// probes, and the Prometheus scrape endpoint, all behind the observability
// middleware.
func (a *App) initHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/call", transport.NewServer(a.router))
	mux.Handle("GET /metrics", promhttp.Handler())

	checkers := []health.Checker{
		{Name: "directory", Check: a.checkDirectory},
	}
	if p, ok := a.gateway.(pinger); ok {
		checkers = append(checkers, health.Checker{Name: "telephony", Check: p.Ping})
	}
	health.New(checkers...).WithActiveCalls(a.sessions.Len).Register(mux)

	a.httpServer = &http.Server{
		Addr:        a.cfg.Server.ListenAddr,
		Handler:     observe.Middleware(a.metrics)(mux),
		ReadTimeout: 30 * time.Second,
	}
}

// pinger is the optional reachability probe a gateway may expose; the REST
// client and the mock both do.
type pinger interface {
	Ping(ctx context.Context) error
}

// checkDirectory probes the directory backend for readiness.
func (a *App) checkDirectory(ctx context.Context) error {
	if a.pool != nil {
		return a.pool.Ping(ctx)
	}
	return nil
}

// Run serves until ctx is cancelled or a subsystem fails. It starts the HTTP
// server, the expired-session sweeper, and (when configured) the config
// watcher.
func (a *App) Run(ctx context.Context) error {
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfigChange)
		if err != nil {
			return fmt.Errorf("app: start config watcher: %w", err)
		}
		a.watcher = w
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", a.httpServer.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.sweepLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(drainCtx)
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// sweepLoop periodically removes sessions whose timers failed to fire, e.g.
// after a connection vanished without a close handshake.
func (a *App) sweepLoop(ctx context.Context) {
	interval := a.cfg.Call.SweepInterval.Std()
	if interval <= 0 {
		interval = time.Minute
	}
	maxAge := 2 * a.cfg.Call.InactivityTimeout.Std()
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.sessions.SweepExpired(maxAge); n > 0 {
				slog.Warn("swept expired sessions", "count", n)
			}
		}
	}
}

// applyConfigChange reacts to a changed config file: log level and call
// tuning take effect immediately; everything else requires a restart.
func (a *App) applyConfigChange(old, new *config.Config) {
	diff := config.Diff(old, new)

	if diff.LogLevelChanged {
		a.logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level updated", "level", diff.NewLogLevel)
	}
	if diff.CallTuningChanged {
		a.dispatcher.SetTuning(tuningFromConfig(diff.NewCallTuning))
		a.router.SetSettings(settingsFromConfig(diff.NewCallTuning))
		slog.Info("call tuning updated")
	}
}

// Shutdown stops the watcher, drains the HTTP server, and runs the closers in
// order.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "active_calls", a.sessions.Len())

		if a.watcher != nil {
			a.watcher.Stop()
		}
		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// Sessions exposes the session store, for tests and diagnostics.
func (a *App) Sessions() *session.Store { return a.sessions }

// tuningFromConfig converts call tuning config to dispatcher thresholds.
func tuningFromConfig(cc config.CallConfig) tools.Tuning {
	return tools.Tuning{
		MaxConsecutiveToolCalls: cc.MaxConsecutiveToolCalls,
		DuplicateCallWindow:     cc.DuplicateCallWindow.Std(),
		DuplicateCallLimit:      cc.DuplicateCallLimit,
		MinConversationTurns:    cc.MinConversationTurns,
	}
}

// settingsFromConfig converts call tuning config to router timing settings.
func settingsFromConfig(cc config.CallConfig) call.Settings {
	return call.Settings{
		InactivityTimeout: cc.InactivityTimeout.Std(),
		GreetingDelay:     cc.GreetingDelay.Std(),
		HangupGrace:       cc.HangupGrace.Std(),
		SpeakingWPM:       cc.SpeakingWPM,
		MinSpeakingDelay:  cc.MinSpeakingDelay.Std(),
	}
}

// slogLevel maps a config log level to its slog equivalent.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
