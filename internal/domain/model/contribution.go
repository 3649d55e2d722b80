// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the part an employee played on the project.
type Role string

const (
	RoleArchitect   Role = "Architect"
	RoleLead        Role = "Lead"
	RoleContributor Role = "Contributor"
	RoleAssistant   Role = "Assistant"
)

// Roles lists the accepted roles.
var Roles = []Role{RoleArchitect, RoleLead, RoleContributor, RoleAssistant}

// ParseRole normalizes s to a known Role. Empty input yields Contributor.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RoleContributor, nil
	}
	for _, r := range Roles {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("role must be one of %v, got %q", Roles, s)
}

// Level is the size of a contribution.
type Level string

const (
	LevelMinor       Level = "Minor"
	LevelModerate    Level = "Moderate"
	LevelSignificant Level = "Significant"
)

// Levels lists the accepted contribution levels.
var Levels = []Level{LevelMinor, LevelModerate, LevelSignificant}

// ParseLevel normalizes s to a known Level. Empty input yields Moderate.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LevelModerate, nil
	}
	for _, l := range Levels {
		if strings.EqualFold(string(l), s) {
			return l, nil
		}
	}
	return "", fmt.Errorf("contribution level must be one of %v, got %q", Levels, s)
}

// Status is the review state of a contribution.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusValidated Status = "Validated"
	StatusRejected  Status = "Rejected"
)

// ParseStatus normalizes s to a known Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusPending, StatusValidated, StatusRejected} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Stage is the position of a contribution in the pipeline, derived from
// its status and the two progress flags.
type Stage string

const (
	StagePending           Stage = "pending"
	StageRejected          Stage = "rejected"
	StageValidated         Stage = "validated"
	StageConfidenceApplied Stage = "confidence_applied"
	StagePointsAwarded     Stage = "points_awarded"
)

// Feedback is the reviewer's explanation attached to a rejection.
type Feedback struct {
	Message   string    `json:"message"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Contribution is one reported use of a skill on a project.
type Contribution struct {
	ID                string     `json:"id"`
	EmployeeID        string     `json:"employee_id"`
	EmployeeName      string     `json:"employee_name,omitempty"`
	ProjectID         string     `json:"project_id"`
	ProjectName       string     `json:"project_name,omitempty"`
	SkillUsed         string     `json:"skill_used"`
	Role              Role       `json:"role_in_project"`
	Level             Level      `json:"contribution_level"`
	ConfidenceImpact  float64    `json:"confidence_impact"`
	Status            Status     `json:"status"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	ValidatedAt       *time.Time `json:"validated_at,omitempty"`
	ValidatedBy       string     `json:"validated_by,omitempty"`
	ManagerNote       string     `json:"manager_note,omitempty"`
	RejectionFeedback *Feedback  `json:"rejection_feedback,omitempty"`

	AppliedToConfidence bool `json:"applied_to_confidence"`
	PointsAwarded       bool `json:"points_awarded"`
}

// Stage reports where the contribution sits in the pipeline.
func (c *Contribution) Stage() Stage {
	switch {
	case c.Status == StatusRejected:
		return StageRejected
	case c.Status == StatusPending:
		return StagePending
	case c.PointsAwarded:
		return StagePointsAwarded
	case c.AppliedToConfidence:
		return StageConfidenceApplied
	default:
		return StageValidated
	}
}

// ReadyForConfidence reports whether the confidence stage may consume c.
func (c *Contribution) ReadyForConfidence() bool {
	return c.Stage() == StageValidated
}

// ReadyForPoints reports whether the points stage may consume c.
func (c *Contribution) ReadyForPoints() bool {
	return c.Stage() == StageConfidenceApplied
}
