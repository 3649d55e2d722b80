// Package repository defines the pipeline store contract and its in-memory backend.
package repository

import (
	"context"
	"time"

	"github.com/okian/helix/internal/domain/model"
)

// ContributionFilter narrows ListContributions. Zero values match everything.
type ContributionFilter struct {
	EmployeeID string
	Status     model.Status
	Applied    *bool
	Awarded    *bool
}

// Matches reports whether c passes the filter.
func (f ContributionFilter) Matches(c *model.Contribution) bool {
	if f.EmployeeID != "" && c.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Applied != nil && c.AppliedToConfidence != *f.Applied {
		return false
	}
	if f.Awarded != nil && c.PointsAwarded != *f.Awarded {
		return false
	}
	return true
}

// Review is a terminal decision on a Pending contribution.
type Review struct {
	ContributionID string
	Status         model.Status
	ReviewerID     string
	ManagerNote    string
	Feedback       *model.Feedback
	At             time.Time
}

// Store provides read and write access to pipeline state.
//
// Every mutating call is atomic and conditional: when the stored state no
// longer matches what the caller planned against, it fails with ErrConflict
// and changes nothing. Reads of a missing employee record return an empty
// record rather than ErrNotFound.
type Store interface {
	// CreateContribution persists c as given. The id must be unique.
	CreateContribution(ctx context.Context, c model.Contribution) error
	// GetContribution returns ErrNotFound for unknown ids.
	GetContribution(ctx context.Context, id string) (model.Contribution, error)
	// ListContributions returns matches ordered by submitted_at then id, ascending.
	ListContributions(ctx context.Context, f ContributionFilter) ([]model.Contribution, error)
	// ReviewContribution moves a Pending contribution to r.Status.
	// Returns ErrConflict if it is no longer Pending.
	ReviewContribution(ctx context.Context, r Review) (model.Contribution, error)

	GetSkillConfidence(ctx context.Context, employeeID string) (model.SkillConfidence, error)
	// SeedSkills adds entries for skills the employee does not have yet and
	// returns the names it added.
	SeedSkills(ctx context.Context, employeeID string, entries map[string]model.SkillEntry, at time.Time) ([]string, error)

	GetPoints(ctx context.Context, employeeID string) (model.HelixPoints, error)
	GetPeriodUsage(ctx context.Context, employeeID, skill, period string) (model.PeriodUsage, error)

	// ApplyConfidence persists one confidence update described by e in a
	// single transaction: skill value and history, audit entry, period usage
	// and the contribution's applied flag. The contribution must be Validated
	// and unapplied, and the skill must still hold e.OldConfidence.
	ApplyConfidence(ctx context.Context, e model.ConfidenceLogEntry) (model.ConfidenceLogEntry, error)
	// AwardPoints persists one award described by e in a single transaction:
	// balance, audit entry, period usage and the contribution's awarded flag.
	// The contribution must be applied and not awarded, and the period's
	// points must still equal expectedUsed. TotalPointsAfter is filled in.
	AwardPoints(ctx context.Context, e model.AwardLogEntry, expectedUsed int) (model.AwardLogEntry, error)

	// FindConfidenceLog returns the audit entry for a contribution or ErrNotFound.
	FindConfidenceLog(ctx context.Context, contributionID string) (model.ConfidenceLogEntry, error)
	ListConfidenceLogs(ctx context.Context, employeeID string) ([]model.ConfidenceLogEntry, error)
	ListAwardLogs(ctx context.Context, employeeID string) ([]model.AwardLogEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

// ConfidenceMatches compares stored and expected confidence values, which
// are always rounded to cents.
func ConfidenceMatches(stored, expected float64) bool {
	d := stored - expected
	return d < 0.005 && d > -0.005
}

// SkillAfterApply returns entry updated by e, appending a history record.
func SkillAfterApply(entry model.SkillEntry, e model.ConfidenceLogEntry) model.SkillEntry {
	entry.Confidence = e.NewConfidence
	entry.Source = model.SourceContribution
	entry.Status = model.SkillValidated
	entry.History = append(append([]model.HistoryEntry(nil), entry.History...), model.HistoryEntry{
		OldConfidence:        e.OldConfidence,
		NewConfidence:        e.NewConfidence,
		Increment:            e.Increment,
		SourceContributionID: e.SourceContributionID,
		ContributionLevel:    e.ContributionLevel,
		Role:                 e.Role,
		AppliedAt:            e.AppliedAt,
	})
	return entry
}
