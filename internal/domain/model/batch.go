package model

import "time"

// ItemError describes one contribution a batch could not move forward.
type ItemError struct {
	ContributionID string `json:"contribution_id"`
	EmployeeID     string `json:"employee_id"`
	Skill          string `json:"skill,omitempty"`
	Kind           string `json:"kind"`
	Message        string `json:"message"`
}

// ConfidenceUpdate is one persisted (or, in a preview, planned) confidence change.
type ConfidenceUpdate struct {
	ContributionID    string  `json:"contribution_id"`
	EmployeeID        string  `json:"employee_id"`
	Skill             string  `json:"skill"`
	OldConfidence     float64 `json:"old_confidence"`
	NewConfidence     float64 `json:"new_confidence"`
	Increment         float64 `json:"increment"`
	RawIncrement      float64 `json:"raw_increment"`
	RoleMultiplier    float64 `json:"role_multiplier"`
	DiminishingFactor float64 `json:"diminishing_factor"`
	Truncated         bool    `json:"truncated,omitempty"`
}

// ConfidenceRun is the result of a confidence batch.
type ConfidenceRun struct {
	Success    bool               `json:"success"`
	EmployeeID string             `json:"employee_id"`
	Updates    []ConfidenceUpdate `json:"updates"`
	AppliedIDs []string           `json:"applied_ids"`
	Skipped    []ItemError        `json:"skipped"`
	Errors     []ItemError        `json:"errors"`
	Error      string             `json:"error,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Award is one persisted points grant.
type Award struct {
	ContributionID string  `json:"contribution_id"`
	EmployeeID     string  `json:"employee_id"`
	Skill          string  `json:"skill"`
	Points         int     `json:"points"`
	Computed       int     `json:"computed"`
	TotalAfter     int     `json:"total_after"`
	Delta          float64 `json:"confidence_delta"`
	Truncated      bool    `json:"truncated,omitempty"`
}

// PointsRun is the result of a points batch.
type PointsRun struct {
	Success            bool        `json:"success"`
	EmployeeID         string      `json:"employee_id"`
	Awards             []Award     `json:"awards"`
	AwardedIDs         []string    `json:"awarded_ids"`
	TotalPointsAwarded int         `json:"total_points_awarded"`
	Skipped            []ItemError `json:"skipped"`
	Errors             []ItemError `json:"errors"`
	Error              string      `json:"error,omitempty"`
	StartedAt          time.Time   `json:"started_at"`
	FinishedAt         time.Time   `json:"finished_at"`
}

// SkillSummary aggregates one employee's contributions for a skill.
type SkillSummary struct {
	Total       int     `json:"total"`
	Validated   int     `json:"validated"`
	TotalImpact float64 `json:"total_impact"`
}

// EmployeeSummary aggregates one employee's contributions.
type EmployeeSummary struct {
	EmployeeID string                  `json:"employee_id"`
	Total      int                     `json:"total_contributions"`
	Validated  int                     `json:"validated"`
	Pending    int                     `json:"pending"`
	Rejected   int                     `json:"rejected"`
	Skills     map[string]SkillSummary `json:"skills"`
}

// AllEmployees targets every employee in a run.
const AllEmployees = "all"

// PipelineRun is a confidence run followed by a points run.
type PipelineRun struct {
	Success    bool          `json:"success"`
	EmployeeID string        `json:"employee_id"`
	Confidence ConfidenceRun `json:"confidence"`
	Points     PointsRun     `json:"points"`
}

// LastRuns holds the most recent result of each run kind, for operators.
type LastRuns struct {
	Confidence *ConfidenceRun `json:"confidence,omitempty"`
	Points     *PointsRun     `json:"points,omitempty"`
	Pipeline   *PipelineRun   `json:"pipeline,omitempty"`
}
