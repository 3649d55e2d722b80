// Package confidence turns validated contributions into bounded per-skill
// confidence increases.
package confidence

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

const stage = "confidence"

// Store is the persistence the updater needs.
type Store interface {
	ListContributions(ctx context.Context, f repository.ContributionFilter) ([]model.Contribution, error)
	GetSkillConfidence(ctx context.Context, employeeID string) (model.SkillConfidence, error)
	GetPeriodUsage(ctx context.Context, employeeID, skill, period string) (model.PeriodUsage, error)
	ApplyConfidence(ctx context.Context, e model.ConfidenceLogEntry) (model.ConfidenceLogEntry, error)
	SeedSkills(ctx context.Context, employeeID string, entries map[string]model.SkillEntry, at time.Time) ([]string, error)
}

// Updater is the confidence stage of the pipeline.
type Updater struct {
	store  Store
	scorer *scoring.Scorer
	locks  *keylock.Locker
	now    func() time.Time
	logger logger.Logger
}

// New creates an Updater over store.
func New(store Store, opts ...Option) *Updater {
	u := &Updater{
		store:  store,
		scorer: scoring.New(),
		locks:  keylock.New(),
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// FindApplicable returns validated contributions not yet applied, oldest
// first. An empty employeeID means every employee.
func (u *Updater) FindApplicable(ctx context.Context, employeeID string) ([]model.Contribution, error) {
	applied := false
	out, err := u.store.ListContributions(ctx, repository.ContributionFilter{
		EmployeeID: employeeID,
		Status:     model.StatusValidated,
		Applied:    &applied,
	})
	if err != nil {
		return nil, errs.Wrap("confidence.FindApplicable", err)
	}
	return out, nil
}

// ProcessEmployee applies every applicable contribution of one employee.
// Item failures are reported in the result and never stop the batch.
func (u *Updater) ProcessEmployee(ctx context.Context, employeeID string) model.ConfidenceRun {
	return u.run(ctx, employeeID, true)
}

// Preview plans the next run for an employee without writing anything.
func (u *Updater) Preview(ctx context.Context, employeeID string) model.ConfidenceRun {
	return u.run(ctx, employeeID, false)
}

// ProcessAll runs ProcessEmployee for every employee with applicable
// contributions and merges the results.
func (u *Updater) ProcessAll(ctx context.Context) model.ConfidenceRun {
	start := u.now().UTC()
	total := model.ConfidenceRun{
		Success:    true,
		EmployeeID: "all",
		Updates:    []model.ConfidenceUpdate{},
		AppliedIDs: []string{},
		Skipped:    []model.ItemError{},
		Errors:     []model.ItemError{},
		StartedAt:  start,
	}
	pending, err := u.FindApplicable(ctx, "")
	if err != nil {
		total.Success = false
		total.Error = err.Error()
		total.FinishedAt = u.now().UTC()
		u.logger.Error(ctx, "confidence run could not start", logger.Error(err))
		return total
	}

	var failures []string
	for _, employeeID := range employees(pending) {
		r := u.ProcessEmployee(ctx, employeeID)
		total.Updates = append(total.Updates, r.Updates...)
		total.AppliedIDs = append(total.AppliedIDs, r.AppliedIDs...)
		total.Skipped = append(total.Skipped, r.Skipped...)
		total.Errors = append(total.Errors, r.Errors...)
		if !r.Success {
			total.Success = false
			failures = append(failures, employeeID+": "+r.Error)
		}
	}
	total.Error = strings.Join(failures, "; ")
	total.FinishedAt = u.now().UTC()
	return total
}

// employees lists distinct employee ids in first-seen order.
func employees(cs []model.Contribution) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for i := range cs {
		if !seen[cs[i].EmployeeID] {
			seen[cs[i].EmployeeID] = true
			out = append(out, cs[i].EmployeeID)
		}
	}
	return out
}

// skillCursor tracks one skill's state while a batch walks its contributions.
type skillCursor struct {
	current float64
	k       int
	gained  float64
	err     error
}

func (u *Updater) run(ctx context.Context, employeeID string, persist bool) (res model.ConfidenceRun) {
	start := u.now().UTC()
	res = model.ConfidenceRun{
		Success:    true,
		EmployeeID: employeeID,
		Updates:    []model.ConfidenceUpdate{},
		AppliedIDs: []string{},
		Skipped:    []model.ItemError{},
		Errors:     []model.ItemError{},
		StartedAt:  start,
	}
	fail := func(err error) model.ConfidenceRun {
		res.Success = false
		res.Error = err.Error()
		return res
	}
	defer func() {
		res.FinishedAt = u.now().UTC()
		if persist {
			metrics.RecordBatchRun(stage, res.Success, float64(res.FinishedAt.Sub(start).Milliseconds()))
		}
	}()

	if strings.TrimSpace(employeeID) == "" {
		return fail(errs.Newf("confidence.ProcessEmployee", errs.ErrValidation, "employee id is required"))
	}

	if persist {
		unlock, err := u.locks.Lock(ctx, employeeID)
		if err != nil {
			return fail(fmt.Errorf("waiting for employee lock: %w", err))
		}
		defer unlock()
	}

	pending, err := u.FindApplicable(ctx, employeeID)
	if err != nil {
		u.logger.Error(ctx, "confidence run could not start", logger.String("employee_id", employeeID), logger.Error(err))
		return fail(err)
	}
	if len(pending) == 0 {
		return res
	}
	record, err := u.store.GetSkillConfidence(ctx, employeeID)
	if err != nil {
		return fail(errs.Wrap("confidence.ProcessEmployee", err))
	}

	period := model.PeriodOf(u.now())
	for _, group := range groupBySkill(pending) {
		cur := u.openCursor(ctx, &record, employeeID, group[0].SkillUsed, period)
		for i := range group {
			u.step(ctx, &res, cur, &group[i], period, persist)
		}
	}

	if persist && (len(res.AppliedIDs) > 0 || len(res.Errors) > 0) {
		u.logger.Info(ctx, "confidence run finished",
			logger.String("employee_id", employeeID),
			logger.Int("applied", len(res.AppliedIDs)),
			logger.Int("skipped", len(res.Skipped)),
			logger.Int("errors", len(res.Errors)),
		)
	}
	return res
}

func (u *Updater) openCursor(ctx context.Context, record *model.SkillConfidence, employeeID, skill, period string) *skillCursor {
	current, _ := record.Confidence(skill)
	usage, err := u.store.GetPeriodUsage(ctx, employeeID, skill, period)
	if err != nil {
		return &skillCursor{err: errs.Wrap("confidence.PeriodUsage", err)}
	}
	return &skillCursor{current: current, k: usage.AppliedCount, gained: usage.ConfidenceGain}
}

// groupBySkill splits contributions by skill keeping first-appearance order
// of skills and the incoming order within each skill.
func groupBySkill(cs []model.Contribution) [][]model.Contribution {
	index := make(map[string]int)
	var groups [][]model.Contribution
	for i := range cs {
		skill := cs[i].SkillUsed
		j, ok := index[skill]
		if !ok {
			j = len(groups)
			index[skill] = j
			groups = append(groups, nil)
		}
		groups[j] = append(groups[j], cs[i])
	}
	return groups
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

func (u *Updater) step(ctx context.Context, res *model.ConfidenceRun, cur *skillCursor, c *model.Contribution, period string, persist bool) {
	if cur.err != nil {
		res.Errors = append(res.Errors, itemError(c, cur.err))
		return
	}

	s := u.scorer.Confidence(cur.current, c.ConfidenceImpact, c.Role, cur.k, cur.gained)
	if s.CapReached {
		u.skip(res, c, errs.Newf("confidence.Apply", errs.ErrCapReached,
			"monthly confidence cap reached for skill %s (contribution %s)", c.SkillUsed, c.ID), persist)
		return
	}
	if s.Increment <= 0 {
		u.skip(res, c, errs.Newf("confidence.Apply", errs.ErrNoIncrement,
			"no confidence increase for skill %s (contribution %s)", c.SkillUsed, c.ID), persist)
		return
	}

	upd := model.ConfidenceUpdate{
		ContributionID:    c.ID,
		EmployeeID:        c.EmployeeID,
		Skill:             c.SkillUsed,
		OldConfidence:     cur.current,
		NewConfidence:     s.NewConfidence,
		Increment:         s.Increment,
		RawIncrement:      s.RawIncrement,
		RoleMultiplier:    s.RoleMultiplier,
		DiminishingFactor: s.DiminishingFactor,
		Truncated:         s.Truncated,
	}
	if err := u.checkUpdate(&upd); err != nil {
		res.Errors = append(res.Errors, itemError(c, err))
		return
	}

	if persist {
		_, err := u.store.ApplyConfidence(ctx, model.ConfidenceLogEntry{
			EmployeeID:           c.EmployeeID,
			Skill:                c.SkillUsed,
			SourceContributionID: c.ID,
			OldConfidence:        upd.OldConfidence,
			NewConfidence:        upd.NewConfidence,
			Increment:            upd.Increment,
			BaseImpact:           c.ConfidenceImpact,
			RoleMultiplier:       upd.RoleMultiplier,
			DiminishingFactor:    upd.DiminishingFactor,
			ContributionLevel:    c.Level,
			Role:                 c.Role,
			Period:               period,
			TablesVersion:        u.scorer.Tables().Version,
			AppliedAt:            u.now().UTC(),
		})
		if err != nil {
			err = errs.Wrap("confidence.Apply", err)
			res.Errors = append(res.Errors, itemError(c, err))
			u.logger.Warn(ctx, "confidence apply failed",
				logger.String("contribution_id", c.ID),
				logger.Error(err),
			)
			return
		}
		metrics.RecordConfidenceApplied(upd.Increment)
	}

	res.Updates = append(res.Updates, upd)
	res.AppliedIDs = append(res.AppliedIDs, c.ID)
	cur.current = upd.NewConfidence
	cur.k++
	cur.gained = scoring.Round2(cur.gained + upd.Increment)
}

func (u *Updater) skip(res *model.ConfidenceRun, c *model.Contribution, err error, persist bool) {
	item := itemError(c, err)
	res.Skipped = append(res.Skipped, item)
	if persist {
		metrics.RecordItemSkip(stage, item.Kind)
	}
}

// checkUpdate rejects a planned update that would break the confidence bounds.
func (u *Updater) checkUpdate(upd *model.ConfidenceUpdate) error {
	const op = "confidence.CheckUpdate"
	t := u.scorer.Tables()
	var problems []string
	if upd.Skill == "" || upd.ContributionID == "" {
		problems = append(problems, "update is missing its skill or contribution")
	}
	if upd.NewConfidence < t.MinConfidence || upd.NewConfidence > t.MaxConfidence {
		problems = append(problems, fmt.Sprintf("new confidence %.2f out of bounds", upd.NewConfidence))
	}
	if upd.Increment < 0 {
		problems = append(problems, fmt.Sprintf("negative increment %.2f", upd.Increment))
	}
	if upd.NewConfidence < upd.OldConfidence {
		problems = append(problems, fmt.Sprintf("confidence would drop from %.2f to %.2f", upd.OldConfidence, upd.NewConfidence))
	}
	if !repository.ConfidenceMatches(upd.OldConfidence+upd.Increment, upd.NewConfidence) {
		problems = append(problems, "increment does not match the confidence change")
	}
	if len(problems) > 0 {
		return errs.WrapKind(op, errs.ErrValidation, errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

// InitializeBaseline seeds confidence for resume skills the employee does
// not have yet and returns the skills it created.
func (u *Updater) InitializeBaseline(ctx context.Context, employeeID string, profile model.ResumeProfile) ([]string, error) {
	const op = "confidence.InitializeBaseline"
	if strings.TrimSpace(employeeID) == "" {
		return nil, errs.Newf(op, errs.ErrValidation, "employee id is required")
	}
	if profile.ExperienceYears < 0 {
		return nil, errs.Newf(op, errs.ErrValidation, "experience years must not be negative")
	}

	baseline := u.scorer.Baseline(profile.ExperienceYears)
	entries := make(map[string]model.SkillEntry, len(profile.Skills))
	for _, skill := range profile.Skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		entries[skill] = model.SkillEntry{
			Confidence: baseline,
			Source:     model.SourceResume,
			Status:     model.SkillBaseline,
			History:    []model.HistoryEntry{},
		}
	}
	if len(entries) == 0 {
		return []string{}, nil
	}

	unlock, err := u.locks.Lock(ctx, employeeID)
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrStoreUnavailable, err)
	}
	defer unlock()

	added, err := u.store.SeedSkills(ctx, employeeID, entries, u.now().UTC())
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	u.logger.Info(ctx, "baseline initialized",
		logger.String("employee_id", employeeID),
		logger.Int("skills_added", len(added)),
		logger.Float64("baseline", baseline),
	)
	return added, nil
}
