package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/helix/internal/adapters/http/api"
	"github.com/okian/helix/internal/adapters/http/swagger"
	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/adapters/repository/postgres"
	"github.com/okian/helix/internal/adapters/repository/sqlite"
	app "github.com/okian/helix/internal/app"
	"github.com/okian/helix/internal/config"
	"github.com/okian/helix/internal/domain/scoring"
	"github.com/okian/helix/pkg/logger"
	"github.com/okian/helix/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 60 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be initialized yet.
		os.Stderr.WriteString("helix: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	if err := logger.InitWith(os.Stderr, format); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close store", logger.Error(err))
		}
	}()

	svc := newService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore opens the configured driver and wraps it with per-call
// timeouts and store metrics.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	var (
		next repository.Store
		err  error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		next = repository.NewMemoryStore()
	case config.DriverSQLite:
		next, err = sqlite.Open(cfg.SQLitePath)
	case config.DriverPostgres:
		next, err = postgres.Open(ctx, cfg.PostgresURL,
			postgres.WithMaxConns(int32(cfg.PostgresMaxConns)),
			postgres.WithLogger(log.Named("postgres")),
		)
	default:
		err = fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	return repository.Instrument(next, repository.WithTimeout(cfg.StoreTimeout())), nil
}

func newService(cfg *config.Config, store repository.Store, log logger.Logger) *app.Service {
	scorer := scoring.New(
		scoring.WithMonthlyCaps(cfg.MonthlyConfidenceCap, cfg.MonthlyPointsCap),
		scoring.WithSkillRarity(cfg.SkillRarity),
	)
	return app.New(store,
		app.WithLogger(log),
		app.WithScorer(scorer),
		app.WithQueueSize(cfg.TriggerQueueSize),
		app.WithDedupeSize(cfg.TriggerDedupeSize),
		app.WithSweepInterval(cfg.SweepInterval()),
		app.WithAutoRun(cfg.AutoRunOnValidate),
	)
}

func newHandler(ctx context.Context, svc *app.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)
	return api.RecoverMiddleware(mux, log.Named("http"))
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateMemoryUsage(m.Alloc)
	metrics.UpdateGoroutineCount(runtime.NumGoroutine())
}
