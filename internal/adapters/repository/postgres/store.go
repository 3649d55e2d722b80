// Package postgres implements repository.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/pkg/logger"
	"github.com/okian/helix/pkg/retry"
)

const uniqueViolation = "23505"

// Pool defaults, overridable through options.
const (
	defaultMaxConns        = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// Store is a PostgreSQL-backed repository.Store. Pipeline writes lock the
// affected rows with SELECT ... FOR UPDATE so concurrent processes apply a
// contribution at most once.
type Store struct {
	pool  *pgxpool.Pool
	newID func() string
}

var _ repository.Store = (*Store)(nil)

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	maxConns      int32
	retry         retry.Config
	skipMigration bool
	log           logger.Logger
}

// WithLogger sets the logger used while connecting and migrating.
func WithLogger(l logger.Logger) Option {
	return func(c *openConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMaxConns bounds the pool size.
func WithMaxConns(n int32) Option {
	return func(c *openConfig) {
		if n > 0 {
			c.maxConns = n
		}
	}
}

// WithRetry overrides the connect retry policy.
func WithRetry(rc retry.Config) Option {
	return func(c *openConfig) { c.retry = rc }
}

// WithoutMigrations skips applying migrations on open.
func WithoutMigrations() Option {
	return func(c *openConfig) { c.skipMigration = true }
}

// Open connects to url, retrying transient failures, and migrates the schema.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	cfg := openConfig{maxConns: defaultMaxConns, retry: retry.DefaultConfig(), log: logger.Nop()}
	for _, o := range opts {
		o(&cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.maxConns
	poolCfg.MaxConnLifetime = defaultMaxConnLifetime
	poolCfg.MaxConnIdleTime = defaultMaxConnIdleTime

	log := cfg.log
	pool, err := retry.Do(ctx, cfg.retry, func(ctx context.Context) (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			log.Warn(ctx, "database not ready", logger.Error(err))
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if !cfg.skipMigration {
		if err := Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
	}
	log.Info(ctx, "connected", logger.Int("max_conns", int(cfg.maxConns)))
	return &Store{pool: pool, newID: uuid.NewString}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies a connection can be acquired.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// withTx runs fn in a read-committed transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
