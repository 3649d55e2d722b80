package model

import "time"

// Source tells where a skill entry originated.
type Source string

const (
	SourceResume       Source = "resume"
	SourceContribution Source = "project_contribution"
)

// SkillStatus tells whether an entry is still the resume baseline.
type SkillStatus string

const (
	SkillBaseline  SkillStatus = "baseline"
	SkillValidated SkillStatus = "validated"
)

// HistoryEntry is one immutable confidence change for a skill.
type HistoryEntry struct {
	OldConfidence        float64   `json:"old_confidence"`
	NewConfidence        float64   `json:"new_confidence"`
	Increment            float64   `json:"increment"`
	SourceContributionID string    `json:"source_contribution_id"`
	ContributionLevel    Level     `json:"contribution_level"`
	Role                 Role      `json:"role"`
	AppliedAt            time.Time `json:"applied_at"`
}

// SkillEntry is the confidence state of one skill.
type SkillEntry struct {
	Confidence float64        `json:"confidence"`
	Source     Source         `json:"source"`
	Status     SkillStatus    `json:"status"`
	History    []HistoryEntry `json:"history"`
}

// SkillConfidence is the per-employee mapping of skill to confidence.
type SkillConfidence struct {
	EmployeeID string                `json:"employee_id"`
	Skills     map[string]SkillEntry `json:"skills"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Confidence returns the current value for skill and whether it exists.
func (s *SkillConfidence) Confidence(skill string) (float64, bool) {
	if s == nil || s.Skills == nil {
		return 0, false
	}
	e, ok := s.Skills[skill]
	return e.Confidence, ok
}

// ConfidenceLogEntry is the audit record written once per applied contribution.
type ConfidenceLogEntry struct {
	ID                   string    `json:"id"`
	EmployeeID           string    `json:"employee_id"`
	Skill                string    `json:"skill"`
	SourceContributionID string    `json:"source_contribution_id"`
	OldConfidence        float64   `json:"old_confidence"`
	NewConfidence        float64   `json:"new_confidence"`
	Increment            float64   `json:"increment"`
	BaseImpact           float64   `json:"base_impact"`
	RoleMultiplier       float64   `json:"role_multiplier"`
	DiminishingFactor    float64   `json:"diminishing_factor"`
	ContributionLevel    Level     `json:"contribution_level"`
	Role                 Role      `json:"role"`
	Period               string    `json:"period"`
	TablesVersion        string    `json:"tables_version"`
	AppliedAt            time.Time `json:"applied_at"`
}

// ResumeProfile is the parsed resume used to seed baseline confidence.
type ResumeProfile struct {
	Skills          []string `json:"skills" yaml:"skills"`
	ExperienceYears float64  `json:"experience_years" yaml:"experience_years"`
}
