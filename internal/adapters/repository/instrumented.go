package repository

import (
	"context"
	"time"

	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/pkg/metrics"
)

const defaultStoreTimeout = 2 * time.Second

// Instrumented decorates a Store: every call runs under its own timeout,
// is timed into the store latency histogram, and returns errors tagged
// with a domain kind (unknown failures become errs.ErrStoreUnavailable).
type Instrumented struct {
	next    Store
	timeout time.Duration
}

var _ Store = (*Instrumented)(nil)

// Instrument wraps next.
func Instrument(next Store, opts ...InstrumentOption) *Instrumented {
	s := &Instrumented{next: next, timeout: defaultStoreTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the per-call deadline.
func (s *Instrumented) Timeout() time.Duration { return s.timeout }

func call[T any](ctx context.Context, s *Instrumented, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	v, err := fn(ctx)
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		kind := errs.KindOf(err)
		if kind == nil || kind == errs.ErrStoreUnavailable {
			metrics.RecordStoreError(op)
		}
		var zero T
		return zero, errs.Wrap("store."+op, err)
	}
	return v, nil
}

func (s *Instrumented) CreateContribution(ctx context.Context, c model.Contribution) error {
	_, err := call(ctx, s, "create_contribution", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.CreateContribution(ctx, c)
	})
	return err
}

func (s *Instrumented) GetContribution(ctx context.Context, id string) (model.Contribution, error) {
	return call(ctx, s, "get_contribution", func(ctx context.Context) (model.Contribution, error) {
		return s.next.GetContribution(ctx, id)
	})
}

func (s *Instrumented) ListContributions(ctx context.Context, f ContributionFilter) ([]model.Contribution, error) {
	return call(ctx, s, "list_contributions", func(ctx context.Context) ([]model.Contribution, error) {
		return s.next.ListContributions(ctx, f)
	})
}

func (s *Instrumented) ReviewContribution(ctx context.Context, r Review) (model.Contribution, error) {
	return call(ctx, s, "review_contribution", func(ctx context.Context) (model.Contribution, error) {
		return s.next.ReviewContribution(ctx, r)
	})
}

func (s *Instrumented) GetSkillConfidence(ctx context.Context, employeeID string) (model.SkillConfidence, error) {
	return call(ctx, s, "get_skill_confidence", func(ctx context.Context) (model.SkillConfidence, error) {
		return s.next.GetSkillConfidence(ctx, employeeID)
	})
}

func (s *Instrumented) SeedSkills(ctx context.Context, employeeID string, entries map[string]model.SkillEntry, at time.Time) ([]string, error) {
	return call(ctx, s, "seed_skills", func(ctx context.Context) ([]string, error) {
		return s.next.SeedSkills(ctx, employeeID, entries, at)
	})
}

func (s *Instrumented) GetPoints(ctx context.Context, employeeID string) (model.HelixPoints, error) {
	return call(ctx, s, "get_points", func(ctx context.Context) (model.HelixPoints, error) {
		return s.next.GetPoints(ctx, employeeID)
	})
}

func (s *Instrumented) GetPeriodUsage(ctx context.Context, employeeID, skill, period string) (model.PeriodUsage, error) {
	return call(ctx, s, "get_period_usage", func(ctx context.Context) (model.PeriodUsage, error) {
		return s.next.GetPeriodUsage(ctx, employeeID, skill, period)
	})
}

func (s *Instrumented) ApplyConfidence(ctx context.Context, e model.ConfidenceLogEntry) (model.ConfidenceLogEntry, error) {
	return call(ctx, s, "apply_confidence", func(ctx context.Context) (model.ConfidenceLogEntry, error) {
		return s.next.ApplyConfidence(ctx, e)
	})
}

func (s *Instrumented) AwardPoints(ctx context.Context, e model.AwardLogEntry, expectedUsed int) (model.AwardLogEntry, error) {
	return call(ctx, s, "award_points", func(ctx context.Context) (model.AwardLogEntry, error) {
		return s.next.AwardPoints(ctx, e, expectedUsed)
	})
}

func (s *Instrumented) FindConfidenceLog(ctx context.Context, contributionID string) (model.ConfidenceLogEntry, error) {
	return call(ctx, s, "find_confidence_log", func(ctx context.Context) (model.ConfidenceLogEntry, error) {
		return s.next.FindConfidenceLog(ctx, contributionID)
	})
}

func (s *Instrumented) ListConfidenceLogs(ctx context.Context, employeeID string) ([]model.ConfidenceLogEntry, error) {
	return call(ctx, s, "list_confidence_logs", func(ctx context.Context) ([]model.ConfidenceLogEntry, error) {
		return s.next.ListConfidenceLogs(ctx, employeeID)
	})
}

func (s *Instrumented) ListAwardLogs(ctx context.Context, employeeID string) ([]model.AwardLogEntry, error) {
	return call(ctx, s, "list_award_logs", func(ctx context.Context) ([]model.AwardLogEntry, error) {
		return s.next.ListAwardLogs(ctx, employeeID)
	})
}

func (s *Instrumented) Ping(ctx context.Context) error {
	_, err := call(ctx, s, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Ping(ctx)
	})
	return err
}

func (s *Instrumented) Close() error { return s.next.Close() }
