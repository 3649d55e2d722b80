package worker

import (
	"time"

	"github.com/okian/helix/internal/domain/dedupe"
	"github.com/okian/helix/pkg/logger"
)

// Option applies a configuration option to the Sweeper.
type Option func(*Sweeper)

// WithName sets the sweeper name used in logs.
func WithName(name string) Option {
	return func(s *Sweeper) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger for the sweeper.
func WithLogger(l logger.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInterval enables a scheduled sweep over every employee. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d >= 0 {
			s.interval = d
		}
	}
}

// WithPending releases each trigger's key from d right before its run, so
// triggers arriving during the run schedule another one.
func WithPending(d dedupe.Deduper) Option {
	return func(s *Sweeper) {
		s.pending = d
	}
}

// WithRunTimeout bounds a single pipeline run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}
