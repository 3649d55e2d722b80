package model

import "time"

// PeriodLayout formats the monthly window a cap applies to.
const PeriodLayout = "2006-01"

// PeriodOf returns the UTC calendar month containing t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format(PeriodLayout)
}

// HelixPoints is the running points balance of one employee.
type HelixPoints struct {
	EmployeeID  string         `json:"employee_id"`
	TotalPoints int            `json:"total_points"`
	SkillPoints map[string]int `json:"skill_points"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AwardLogEntry is the audit record written once per awarded contribution.
type AwardLogEntry struct {
	ID                   string    `json:"id"`
	EmployeeID           string    `json:"employee_id"`
	Skill                string    `json:"skill"`
	SourceContributionID string    `json:"source_contribution_id"`
	PointsAwarded        int       `json:"points_awarded"`
	TotalPointsAfter     int       `json:"total_points_after"`
	BasePoints           int       `json:"base_points"`
	RoleMultiplier       float64   `json:"role_multiplier"`
	ConfidenceMultiplier float64   `json:"confidence_multiplier"`
	RarityMultiplier     float64   `json:"rarity_multiplier"`
	ConfidenceDelta      float64   `json:"confidence_delta"`
	ContributionLevel    Level     `json:"contribution_level"`
	Role                 Role      `json:"role"`
	Truncated            bool      `json:"truncated,omitempty"`
	Period               string    `json:"period"`
	TablesVersion        string    `json:"tables_version"`
	AwardedAt            time.Time `json:"awarded_at"`
}

// PeriodUsage holds the per (employee, skill, month) counters the caps and
// the diminishing-returns factor are evaluated against.
type PeriodUsage struct {
	EmployeeID     string  `json:"employee_id"`
	Skill          string  `json:"skill"`
	Period         string  `json:"period"`
	ConfidenceGain float64 `json:"confidence_gain"`
	AppliedCount   int     `json:"applied_count"`
	PointsAwarded  int     `json:"points_awarded"`
}
