package points

import (
	"time"

	"github.com/okian/helix/internal/domain/keylock"
	"github.com/okian/helix/internal/domain/scoring"
	"github.com/okian/helix/pkg/logger"
)

// Option applies a configuration option to the Awarder.
type Option func(*Awarder)

// WithScorer sets the scoring tables.
func WithScorer(sc *scoring.Scorer) Option {
	return func(a *Awarder) {
		if sc != nil {
			a.scorer = sc
		}
	}
}

// WithClock sets the time source; it decides the current period.
func WithClock(now func() time.Time) Option {
	return func(a *Awarder) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLocker shares a per-employee lock with other stages.
func WithLocker(l *keylock.Locker) Option {
	return func(a *Awarder) {
		if l != nil {
			a.locks = l
		}
	}
}

// WithLogger sets a custom logger for the awarder.
func WithLogger(l logger.Logger) Option {
	return func(a *Awarder) {
		if l != nil {
			a.logger = l
		}
	}
}
