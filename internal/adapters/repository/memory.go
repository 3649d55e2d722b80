package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/helix/internal/domain/model"
)

type usageKey struct {
	employee, skill, period string
}

// MemoryStore is an in-process Store. A single RWMutex makes every
// mutating call atomic; values are copied in and out so callers never
// share memory with the store.
type MemoryStore struct {
	mu sync.RWMutex

	contributions  map[string]*model.Contribution
	confidence     map[string]*model.SkillConfidence
	points         map[string]*model.HelixPoints
	usage          map[usageKey]*model.PeriodUsage
	confidenceLogs []model.ConfidenceLogEntry
	logByContrib   map[string]int
	awardLogs      []model.AwardLogEntry

	newID  func() string
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		contributions: make(map[string]*model.Contribution),
		confidence:    make(map[string]*model.SkillConfidence),
		points:        make(map[string]*model.HelixPoints),
		usage:         make(map[usageKey]*model.PeriodUsage),
		logByContrib:  make(map[string]int),
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memory store closed")
	}
	return nil
}

func cloneContribution(c *model.Contribution) model.Contribution {
	out := *c
	if c.ValidatedAt != nil {
		t := *c.ValidatedAt
		out.ValidatedAt = &t
	}
	if c.RejectionFeedback != nil {
		f := *c.RejectionFeedback
		out.RejectionFeedback = &f
	}
	return out
}

func cloneSkills(in map[string]model.SkillEntry) map[string]model.SkillEntry {
	out := make(map[string]model.SkillEntry, len(in))
	for k, v := range in {
		v.History = slices.Clone(v.History)
		out[k] = v
	}
	return out
}

// CreateContribution persists c as given.
func (s *MemoryStore) CreateContribution(ctx context.Context, c model.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, ok := s.contributions[c.ID]; ok {
		return fmt.Errorf("contribution %s already exists: %w", c.ID, ErrConflict)
	}
	cp := cloneContribution(&c)
	s.contributions[c.ID] = &cp
	return nil
}

// GetContribution returns a copy of the contribution.
func (s *MemoryStore) GetContribution(ctx context.Context, id string) (model.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return model.Contribution{}, err
	}
	c, ok := s.contributions[id]
	if !ok {
		return model.Contribution{}, fmt.Errorf("contribution %s: %w", id, ErrNotFound)
	}
	return cloneContribution(c), nil
}

// ListContributions returns matches ordered by submitted_at then id.
func (s *MemoryStore) ListContributions(ctx context.Context, f ContributionFilter) ([]model.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]model.Contribution, 0)
	for _, c := range s.contributions {
		if f.Matches(c) {
			out = append(out, cloneContribution(c))
		}
	}
	SortBySubmission(out)
	return out, nil
}

// SortBySubmission orders contributions oldest first, id as tie-break.
func SortBySubmission(cs []model.Contribution) {
	slices.SortFunc(cs, func(a, b model.Contribution) int {
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// ReviewContribution applies a terminal review to a Pending contribution.
func (s *MemoryStore) ReviewContribution(ctx context.Context, r Review) (model.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.Contribution{}, err
	}
	c, ok := s.contributions[r.ContributionID]
	if !ok {
		return model.Contribution{}, fmt.Errorf("contribution %s: %w", r.ContributionID, ErrNotFound)
	}
	if c.Status != model.StatusPending {
		return model.Contribution{}, fmt.Errorf("contribution %s is %s: %w", c.ID, c.Status, ErrConflict)
	}
	at := r.At
	c.Status = r.Status
	c.ValidatedBy = r.ReviewerID
	c.ValidatedAt = &at
	c.ManagerNote = r.ManagerNote
	if r.Feedback != nil {
		f := *r.Feedback
		c.RejectionFeedback = &f
	}
	return cloneContribution(c), nil
}

// GetSkillConfidence returns a copy of the employee's record.
func (s *MemoryStore) GetSkillConfidence(ctx context.Context, employeeID string) (model.SkillConfidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return model.SkillConfidence{}, err
	}
	rec, ok := s.confidence[employeeID]
	if !ok {
		return model.SkillConfidence{EmployeeID: employeeID, Skills: map[string]model.SkillEntry{}}, nil
	}
	out := *rec
	out.Skills = cloneSkills(rec.Skills)
	return out, nil
}

// SeedSkills adds only the skills the employee does not have yet.
func (s *MemoryStore) SeedSkills(ctx context.Context, employeeID string, entries map[string]model.SkillEntry, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rec := s.confidenceRecord(employeeID)
	added := make([]string, 0, len(entries))
	for _, skill := range slices.Sorted(maps.Keys(entries)) {
		if _, ok := rec.Skills[skill]; ok {
			continue
		}
		e := entries[skill]
		e.History = slices.Clone(e.History)
		rec.Skills[skill] = e
		added = append(added, skill)
	}
	if len(added) > 0 {
		rec.UpdatedAt = at
	}
	return added, nil
}

func (s *MemoryStore) confidenceRecord(employeeID string) *model.SkillConfidence {
	rec, ok := s.confidence[employeeID]
	if !ok {
		rec = &model.SkillConfidence{EmployeeID: employeeID, Skills: map[string]model.SkillEntry{}}
		s.confidence[employeeID] = rec
	}
	return rec
}

// GetPoints returns a copy of the employee's balance.
func (s *MemoryStore) GetPoints(ctx context.Context, employeeID string) (model.HelixPoints, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return model.HelixPoints{}, err
	}
	p, ok := s.points[employeeID]
	if !ok {
		return model.HelixPoints{EmployeeID: employeeID, SkillPoints: map[string]int{}}, nil
	}
	out := *p
	out.SkillPoints = maps.Clone(p.SkillPoints)
	return out, nil
}

// GetPeriodUsage returns the counters for one skill and month.
func (s *MemoryStore) GetPeriodUsage(ctx context.Context, employeeID, skill, period string) (model.PeriodUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return model.PeriodUsage{}, err
	}
	if u, ok := s.usage[usageKey{employeeID, skill, period}]; ok {
		return *u, nil
	}
	return model.PeriodUsage{EmployeeID: employeeID, Skill: skill, Period: period}, nil
}

func (s *MemoryStore) usageRecord(employeeID, skill, period string) *model.PeriodUsage {
	k := usageKey{employeeID, skill, period}
	u, ok := s.usage[k]
	if !ok {
		u = &model.PeriodUsage{EmployeeID: employeeID, Skill: skill, Period: period}
		s.usage[k] = u
	}
	return u
}

// ApplyConfidence persists one confidence update atomically.
func (s *MemoryStore) ApplyConfidence(ctx context.Context, e model.ConfidenceLogEntry) (model.ConfidenceLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.ConfidenceLogEntry{}, err
	}
	c, ok := s.contributions[e.SourceContributionID]
	if !ok {
		return model.ConfidenceLogEntry{}, fmt.Errorf("contribution %s: %w", e.SourceContributionID, ErrNotFound)
	}
	if err := CheckApplicable(c, &e); err != nil {
		return model.ConfidenceLogEntry{}, err
	}
	rec := s.confidenceRecord(e.EmployeeID)
	entry := rec.Skills[e.Skill]
	if !ConfidenceMatches(entry.Confidence, e.OldConfidence) {
		return model.ConfidenceLogEntry{}, fmt.Errorf("skill %s moved from %.2f to %.2f: %w", e.Skill, e.OldConfidence, entry.Confidence, ErrConflict)
	}

	if e.ID == "" {
		e.ID = s.newID()
	}
	rec.Skills[e.Skill] = SkillAfterApply(entry, e)
	rec.UpdatedAt = e.AppliedAt

	s.confidenceLogs = append(s.confidenceLogs, e)
	s.logByContrib[e.SourceContributionID] = len(s.confidenceLogs) - 1

	u := s.usageRecord(e.EmployeeID, e.Skill, e.Period)
	u.ConfidenceGain += e.Increment
	u.AppliedCount++

	c.AppliedToConfidence = true
	return e, nil
}

// AwardPoints persists one award atomically.
func (s *MemoryStore) AwardPoints(ctx context.Context, e model.AwardLogEntry, expectedUsed int) (model.AwardLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.AwardLogEntry{}, err
	}
	c, ok := s.contributions[e.SourceContributionID]
	if !ok {
		return model.AwardLogEntry{}, fmt.Errorf("contribution %s: %w", e.SourceContributionID, ErrNotFound)
	}
	if err := CheckAwardable(c, &e); err != nil {
		return model.AwardLogEntry{}, err
	}
	u := s.usageRecord(e.EmployeeID, e.Skill, e.Period)
	if u.PointsAwarded != expectedUsed {
		return model.AwardLogEntry{}, fmt.Errorf("period points for %s moved from %d to %d: %w", e.Skill, expectedUsed, u.PointsAwarded, ErrConflict)
	}

	p, ok := s.points[e.EmployeeID]
	if !ok {
		p = &model.HelixPoints{EmployeeID: e.EmployeeID, SkillPoints: map[string]int{}}
		s.points[e.EmployeeID] = p
	}
	p.TotalPoints += e.PointsAwarded
	p.SkillPoints[e.Skill] += e.PointsAwarded
	p.UpdatedAt = e.AwardedAt

	if e.ID == "" {
		e.ID = s.newID()
	}
	e.TotalPointsAfter = p.TotalPoints
	s.awardLogs = append(s.awardLogs, e)
	u.PointsAwarded += e.PointsAwarded
	c.PointsAwarded = true
	return e, nil
}

// FindConfidenceLog returns the audit entry of a contribution.
func (s *MemoryStore) FindConfidenceLog(ctx context.Context, contributionID string) (model.ConfidenceLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return model.ConfidenceLogEntry{}, err
	}
	i, ok := s.logByContrib[contributionID]
	if !ok {
		return model.ConfidenceLogEntry{}, fmt.Errorf("confidence log for %s: %w", contributionID, ErrNotFound)
	}
	return s.confidenceLogs[i], nil
}

// ListConfidenceLogs returns an employee's confidence audit trail, oldest first.
func (s *MemoryStore) ListConfidenceLogs(ctx context.Context, employeeID string) ([]model.ConfidenceLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]model.ConfidenceLogEntry, 0)
	for _, e := range s.confidenceLogs {
		if e.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListAwardLogs returns an employee's award audit trail, oldest first.
func (s *MemoryStore) ListAwardLogs(ctx context.Context, employeeID string) ([]model.AwardLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]model.AwardLogEntry, 0)
	for _, e := range s.awardLogs {
		if e.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOpen()
}

// Close marks the store closed; later calls fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Count returns the number of contributions held.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contributions)
}
