package confidence

import (
	"time"

	"github.com/okian/helix/internal/domain/keylock"
	"github.com/okian/helix/internal/domain/scoring"
	"github.com/okian/helix/pkg/logger"
)

// Option applies a configuration option to the Updater.
type Option func(*Updater)

// WithScorer sets the scoring tables.
func WithScorer(sc *scoring.Scorer) Option {
	return func(u *Updater) {
		if sc != nil {
			u.scorer = sc
		}
	}
}

// WithClock sets the time source; it decides the current period.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		if now != nil {
			u.now = now
		}
	}
}

// WithLocker shares a per-employee lock with other stages.
func WithLocker(l *keylock.Locker) Option {
	return func(u *Updater) {
		if l != nil {
			u.locks = l
		}
	}
}

// WithLogger sets a custom logger for the updater.
func WithLogger(l logger.Logger) Option {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}
