package service

import (
	"time"

	"github.com/okian/helix/internal/domain/scoring"
	"github.com/okian/helix/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the capacity of the background trigger queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the set of employees with a pending trigger.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSweepInterval schedules a pipeline run over every employee. Zero disables it.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.sweepInterval = d
		}
	}
}

// WithAutoRun enables a background pipeline run for the employee after each
// successful validation.
func WithAutoRun(enabled bool) Option {
	return func(s *Service) {
		s.autoRun = enabled
	}
}

// WithScorer replaces the default v1 scoring tables.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithClock overrides time.Now for every stage.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator overrides how contribution ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
