package repository

import (
	"fmt"

	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/model"
)

// Sentinel kinds returned by every Store backend.
var (
	ErrNotFound = errs.ErrNotFound
	ErrConflict = errs.ErrConflict
)

// CheckApplicable returns ErrConflict unless c may receive confidence from e.
func CheckApplicable(c *model.Contribution, e *model.ConfidenceLogEntry) error {
	if !c.ReadyForConfidence() {
		return fmt.Errorf("contribution %s is %s: %w", c.ID, c.Stage(), ErrConflict)
	}
	if c.EmployeeID != e.EmployeeID || c.SkillUsed != e.Skill {
		return fmt.Errorf("contribution %s does not belong to %s/%s: %w", c.ID, e.EmployeeID, e.Skill, ErrConflict)
	}
	return nil
}

// CheckAwardable returns ErrConflict unless c may receive points from e.
func CheckAwardable(c *model.Contribution, e *model.AwardLogEntry) error {
	if !c.ReadyForPoints() {
		return fmt.Errorf("contribution %s is %s: %w", c.ID, c.Stage(), ErrConflict)
	}
	if c.EmployeeID != e.EmployeeID || c.SkillUsed != e.Skill {
		return fmt.Errorf("contribution %s does not belong to %s/%s: %w", c.ID, e.EmployeeID, e.Skill, ErrConflict)
	}
	return nil
}
