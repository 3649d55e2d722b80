package review

import (
	"time"

	"github.com/okian/helix/internal/domain/scoring"
	"github.com/okian/helix/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClock sets the time source for submission and review timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the contribution ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithScorer sets the tables used for impact suggestions.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
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
