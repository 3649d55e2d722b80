// Package points converts confidence-applied contributions into Helix Points.
package points

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/keylock"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/internal/domain/scoring"
	"github.com/okian/helix/pkg/logger"
	"github.com/okian/helix/pkg/metrics"
)

const stage = "points"

// Store is the persistence the awarder needs.
type Store interface {
	ListContributions(ctx context.Context, f repository.ContributionFilter) ([]model.Contribution, error)
	FindConfidenceLog(ctx context.Context, contributionID string) (model.ConfidenceLogEntry, error)
	GetPeriodUsage(ctx context.Context, employeeID, skill, period string) (model.PeriodUsage, error)
	AwardPoints(ctx context.Context, e model.AwardLogEntry, expectedUsed int) (model.AwardLogEntry, error)
}

// Awarder is the points stage of the pipeline.
type Awarder struct {
	store  Store
	scorer *scoring.Scorer
	locks  *keylock.Locker
	now    func() time.Time
	logger logger.Logger
}

// New creates an Awarder over store.
func New(store Store, opts ...Option) *Awarder {
	a := &Awarder{
		store:  store,
		scorer: scoring.New(),
		locks:  keylock.New(),
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FindApplicable returns contributions whose confidence was applied but
// that have no points yet, oldest first. An empty employeeID means every employee.
func (a *Awarder) FindApplicable(ctx context.Context, employeeID string) ([]model.Contribution, error) {
	applied, awarded := true, false
	out, err := a.store.ListContributions(ctx, repository.ContributionFilter{
		EmployeeID: employeeID,
		Status:     model.StatusValidated,
		Applied:    &applied,
		Awarded:    &awarded,
	})
	if err != nil {
		return nil, errs.Wrap("points.FindApplicable", err)
	}
	return out, nil
}

// ComputePoints returns the uncapped award for c given the confidence
// delta its update produced.
func (a *Awarder) ComputePoints(c *model.Contribution, delta float64) scoring.PointsBreakdown {
	return a.scorer.Points(c.Level, c.Role, delta, c.SkillUsed)
}

// ProcessEmployee awards points for one employee's applicable contributions.
func (a *Awarder) ProcessEmployee(ctx context.Context, employeeID string) model.PointsRun {
	return a.run(ctx, employeeID)
}

// ProcessAll runs ProcessEmployee for every employee with applicable
// contributions and merges the results.
func (a *Awarder) ProcessAll(ctx context.Context) model.PointsRun {
	total := newRun("all", a.now().UTC())
	pending, err := a.FindApplicable(ctx, "")
	if err != nil {
		total.Success = false
		total.Error = err.Error()
		total.FinishedAt = a.now().UTC()
		a.logger.Error(ctx, "points run could not start", logger.Error(err))
		return total
	}

	var failures []string
	seen := make(map[string]bool)
	for i := range pending {
		employeeID := pending[i].EmployeeID
		if seen[employeeID] {
			continue
		}
		seen[employeeID] = true

		r := a.ProcessEmployee(ctx, employeeID)
		total.Awards = append(total.Awards, r.Awards...)
		total.AwardedIDs = append(total.AwardedIDs, r.AwardedIDs...)
		total.TotalPointsAwarded += r.TotalPointsAwarded
		total.Skipped = append(total.Skipped, r.Skipped...)
		total.Errors = append(total.Errors, r.Errors...)
		if !r.Success {
			total.Success = false
			failures = append(failures, employeeID+": "+r.Error)
		}
	}
	total.Error = strings.Join(failures, "; ")
	total.FinishedAt = a.now().UTC()
	return total
}

func newRun(employeeID string, start time.Time) model.PointsRun {
	return model.PointsRun{
		Success:    true,
		EmployeeID: employeeID,
		Awards:     []model.Award{},
		AwardedIDs: []string{},
		Skipped:    []model.ItemError{},
		Errors:     []model.ItemError{},
		StartedAt:  start,
	}
}

func itemError(c *model.Contribution, err error) model.ItemError {
	return model.ItemError{
		ContributionID: c.ID,
		EmployeeID:     c.EmployeeID,
		Skill:          c.SkillUsed,
		Kind:           errs.KindName(err),
		Message:        errs.Message(err),
	}
}

func (a *Awarder) run(ctx context.Context, employeeID string) (res model.PointsRun) {
	start := a.now().UTC()
	res = newRun(employeeID, start)
	fail := func(err error) model.PointsRun {
		res.Success = false
		res.Error = err.Error()
		return res
	}
	defer func() {
		res.FinishedAt = a.now().UTC()
		metrics.RecordBatchRun(stage, res.Success, float64(res.FinishedAt.Sub(start).Milliseconds()))
	}()

	if strings.TrimSpace(employeeID) == "" {
		return fail(errs.Newf("points.ProcessEmployee", errs.ErrValidation, "employee id is required"))
	}
	unlock, err := a.locks.Lock(ctx, employeeID)
	if err != nil {
		return fail(fmt.Errorf("waiting for employee lock: %w", err))
	}
	defer unlock()

	pending, err := a.FindApplicable(ctx, employeeID)
	if err != nil {
		a.logger.Error(ctx, "points run could not start", logger.String("employee_id", employeeID), logger.Error(err))
		return fail(err)
	}

	period := model.PeriodOf(a.now())
	used := make(map[string]int)
	usageErr := make(map[string]error)
	for i := range pending {
		c := &pending[i]
		if _, ok := used[c.SkillUsed]; !ok && usageErr[c.SkillUsed] == nil {
			u, err := a.store.GetPeriodUsage(ctx, employeeID, c.SkillUsed, period)
			if err != nil {
				usageErr[c.SkillUsed] = errs.Wrap("points.PeriodUsage", err)
			} else {
				used[c.SkillUsed] = u.PointsAwarded
			}
		}
		if err := usageErr[c.SkillUsed]; err != nil {
			res.Errors = append(res.Errors, itemError(c, err))
			continue
		}
		if award, ok := a.award(ctx, &res, c, period, used[c.SkillUsed]); ok {
			used[c.SkillUsed] += award.Points
		}
	}

	if len(res.AwardedIDs) > 0 || len(res.Errors) > 0 {
		a.logger.Info(ctx, "points run finished",
			logger.String("employee_id", employeeID),
			logger.Int("awarded", len(res.AwardedIDs)),
			logger.Int("points", res.TotalPointsAwarded),
			logger.Int("skipped", len(res.Skipped)),
			logger.Int("errors", len(res.Errors)),
		)
	}
	return res
}

func (a *Awarder) award(ctx context.Context, res *model.PointsRun, c *model.Contribution, period string, used int) (model.Award, bool) {
	const op = "points.Award"

	logEntry, err := a.store.FindConfidenceLog(ctx, c.ID)
	if errors.Is(err, errs.ErrNotFound) {
		err = errs.Newf(op, errs.ErrDependencyMissing, "no confidence update found for contribution %s", c.ID)
	}
	if err != nil {
		res.Errors = append(res.Errors, itemError(c, errs.Wrap(op, err)))
		metrics.RecordItemSkip(stage, errs.KindName(err))
		return model.Award{}, false
	}

	b := a.ComputePoints(c, logEntry.Increment)
	granted, ok := a.scorer.CapPoints(b.Points, used)
	if !ok {
		item := itemError(c, errs.Newf(op, errs.ErrCapReached,
			"monthly cap reached for skill %s (contribution %s)", c.SkillUsed, c.ID))
		res.Skipped = append(res.Skipped, item)
		metrics.RecordItemSkip(stage, item.Kind)
		return model.Award{}, false
	}

	entry := model.AwardLogEntry{
		EmployeeID:           c.EmployeeID,
		Skill:                c.SkillUsed,
		SourceContributionID: c.ID,
		PointsAwarded:        granted,
		BasePoints:           b.BasePoints,
		RoleMultiplier:       b.RoleMultiplier,
		ConfidenceMultiplier: b.ConfidenceMultiplier,
		RarityMultiplier:     b.RarityMultiplier,
		ConfidenceDelta:      logEntry.Increment,
		ContributionLevel:    c.Level,
		Role:                 c.Role,
		Truncated:            granted < b.Points,
		Period:               period,
		TablesVersion:        a.scorer.Tables().Version,
		AwardedAt:            a.now().UTC(),
	}
	if err := a.checkAward(&entry); err != nil {
		res.Errors = append(res.Errors, itemError(c, err))
		return model.Award{}, false
	}

	saved, err := a.store.AwardPoints(ctx, entry, used)
	if err != nil {
		err = errs.Wrap(op, err)
		res.Errors = append(res.Errors, itemError(c, err))
		a.logger.Warn(ctx, "points award failed",
			logger.String("contribution_id", c.ID),
			logger.Error(err),
		)
		return model.Award{}, false
	}
	metrics.RecordPointsAwarded(granted)

	award := model.Award{
		ContributionID: c.ID,
		EmployeeID:     c.EmployeeID,
		Skill:          c.SkillUsed,
		Points:         granted,
		Computed:       b.Points,
		TotalAfter:     saved.TotalPointsAfter,
		Delta:          logEntry.Increment,
		Truncated:      entry.Truncated,
	}
	res.Awards = append(res.Awards, award)
	res.AwardedIDs = append(res.AwardedIDs, c.ID)
	res.TotalPointsAwarded += granted
	return award, true
}

// checkAward rejects a planned award outside the points bounds.
func (a *Awarder) checkAward(e *model.AwardLogEntry) error {
	t := a.scorer.Tables()
	var problems []string
	if e.EmployeeID == "" || e.Skill == "" || e.SourceContributionID == "" {
		problems = append(problems, "award is missing its employee, skill or contribution")
	}
	if e.PointsAwarded < t.MinPoints || e.PointsAwarded > t.MaxPoints {
		problems = append(problems, fmt.Sprintf("points %d outside [%d, %d]", e.PointsAwarded, t.MinPoints, t.MaxPoints))
	}
	if len(problems) > 0 {
		return errs.WrapKind("points.CheckAward", errs.ErrValidation, errors.New(strings.Join(problems, "; ")))
	}
	return nil
}
