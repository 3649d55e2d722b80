package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/model"
)

const confidenceLogColumns = `id, employee_id, skill, source_contribution_id, old_confidence, new_confidence,
	increment, base_impact, role_multiplier, diminishing_factor, contribution_level, role,
	period, tables_version, applied_at`

const awardLogColumns = `id, employee_id, skill, source_contribution_id, points_awarded, total_points_after,
	base_points, role_multiplier, confidence_multiplier, rarity_multiplier, confidence_delta,
	contribution_level, role, truncated, period, tables_version, awarded_at`

func scanConfidenceLog(r rowScanner) (model.ConfidenceLogEntry, error) {
	var (
		e       model.ConfidenceLogEntry
		applied string
	)
	err := r.Scan(&e.ID, &e.EmployeeID, &e.Skill, &e.SourceContributionID, &e.OldConfidence, &e.NewConfidence,
		&e.Increment, &e.BaseImpact, &e.RoleMultiplier, &e.DiminishingFactor, &e.ContributionLevel, &e.Role,
		&e.Period, &e.TablesVersion, &applied)
	if err != nil {
		return e, err
	}
	e.AppliedAt, err = parseTime(applied)
	return e, err
}

func scanAwardLog(r rowScanner) (model.AwardLogEntry, error) {
	var (
		e         model.AwardLogEntry
		truncated int
		awarded   string
	)
	err := r.Scan(&e.ID, &e.EmployeeID, &e.Skill, &e.SourceContributionID, &e.PointsAwarded, &e.TotalPointsAfter,
		&e.BasePoints, &e.RoleMultiplier, &e.ConfidenceMultiplier, &e.RarityMultiplier, &e.ConfidenceDelta,
		&e.ContributionLevel, &e.Role, &truncated, &e.Period, &e.TablesVersion, &awarded)
	if err != nil {
		return e, err
	}
	e.Truncated = truncated == 1
	e.AwardedAt, err = parseTime(awarded)
	return e, err
}

// GetSkillConfidence assembles the employee's skills with their history.
func (s *Store) GetSkillConfidence(ctx context.Context, employeeID string) (model.SkillConfidence, error) {
	out := model.SkillConfidence{EmployeeID: employeeID, Skills: map[string]model.SkillEntry{}}

	rows, err := s.db.QueryContext(ctx, `SELECT skill, confidence, source, status, updated_at
		FROM skill_confidence WHERE employee_id = ?`, employeeID)
	if err != nil {
		return out, fmt.Errorf("get skill confidence: %w", err)
	}
	for rows.Next() {
		var (
			skill, updated string
			e              model.SkillEntry
		)
		if err := rows.Scan(&skill, &e.Confidence, &e.Source, &e.Status, &updated); err != nil {
			rows.Close()
			return out, fmt.Errorf("scan skill confidence: %w", err)
		}
		e.History = []model.HistoryEntry{}
		out.Skills[skill] = e
		if t, err := parseTime(updated); err == nil && t.After(out.UpdatedAt) {
			out.UpdatedAt = t
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return out, fmt.Errorf("get skill confidence: %w", err)
	}
	rows.Close()

	logs, err := s.ListConfidenceLogs(ctx, employeeID)
	if err != nil {
		return out, err
	}
	for _, l := range logs {
		e, ok := out.Skills[l.Skill]
		if !ok {
			continue
		}
		e.History = append(e.History, model.HistoryEntry{
			OldConfidence:        l.OldConfidence,
			NewConfidence:        l.NewConfidence,
			Increment:            l.Increment,
			SourceContributionID: l.SourceContributionID,
			ContributionLevel:    l.ContributionLevel,
			Role:                 l.Role,
			AppliedAt:            l.AppliedAt,
		})
		out.Skills[l.Skill] = e
	}
	return out, nil
}

// SeedSkills inserts skills the employee does not have yet.
func (s *Store) SeedSkills(ctx context.Context, employeeID string, entries map[string]model.SkillEntry, at time.Time) ([]string, error) {
	added := make([]string, 0, len(entries))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, skill := range slices.Sorted(maps.Keys(entries)) {
			e := entries[skill]
			res, err := tx.ExecContext(ctx, `INSERT INTO skill_confidence (employee_id, skill, confidence, source, status, updated_at)
				VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (employee_id, skill) DO NOTHING`,
				employeeID, skill, e.Confidence, string(e.Source), string(e.Status), formatTime(at))
			if err != nil {
				return fmt.Errorf("seed skill %s: %w", skill, err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				added = append(added, skill)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// GetPoints returns the balance with its per-skill split.
func (s *Store) GetPoints(ctx context.Context, employeeID string) (model.HelixPoints, error) {
	out := model.HelixPoints{EmployeeID: employeeID, SkillPoints: map[string]int{}}
	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT total_points, updated_at FROM helix_points WHERE employee_id = ?`, employeeID).
		Scan(&out.TotalPoints, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("get points: %w", err)
	}
	out.UpdatedAt, _ = parseTime(updated)

	rows, err := s.db.QueryContext(ctx, `SELECT skill, points FROM skill_points WHERE employee_id = ?`, employeeID)
	if err != nil {
		return out, fmt.Errorf("get skill points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			skill  string
			points int
		)
		if err := rows.Scan(&skill, &points); err != nil {
			return out, fmt.Errorf("scan skill points: %w", err)
		}
		out.SkillPoints[skill] = points
	}
	return out, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func periodUsage(ctx context.Context, q queryRower, employeeID, skill, period string) (model.PeriodUsage, error) {
	u := model.PeriodUsage{EmployeeID: employeeID, Skill: skill, Period: period}
	err := q.QueryRowContext(ctx, `SELECT confidence_gain, applied_count, points_awarded
		FROM period_usage WHERE employee_id = ? AND skill = ? AND period = ?`, employeeID, skill, period).
		Scan(&u.ConfidenceGain, &u.AppliedCount, &u.PointsAwarded)
	if errors.Is(err, sql.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return u, fmt.Errorf("get period usage: %w", err)
	}
	return u, nil
}

// GetPeriodUsage returns the counters for one skill and month.
func (s *Store) GetPeriodUsage(ctx context.Context, employeeID, skill, period string) (model.PeriodUsage, error) {
	return periodUsage(ctx, s.db, employeeID, skill, period)
}

// ApplyConfidence persists one confidence update in a transaction.
func (s *Store) ApplyConfidence(ctx context.Context, e model.ConfidenceLogEntry) (model.ConfidenceLogEntry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := getContribution(ctx, tx, e.SourceContributionID)
		if err != nil {
			return err
		}
		if err := repository.CheckApplicable(&c, &e); err != nil {
			return err
		}

		var current float64
		err = tx.QueryRowContext(ctx, `SELECT confidence FROM skill_confidence WHERE employee_id = ? AND skill = ?`,
			e.EmployeeID, e.Skill).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read confidence: %w", err)
		}
		if !repository.ConfidenceMatches(current, e.OldConfidence) {
			return fmt.Errorf("skill %s moved from %.2f to %.2f: %w", e.Skill, e.OldConfidence, current, repository.ErrConflict)
		}

		res, err := tx.ExecContext(ctx, `UPDATE contributions SET applied_to_confidence = 1
			WHERE id = ? AND status = 'Validated' AND applied_to_confidence = 0`, e.SourceContributionID)
		if err != nil {
			return fmt.Errorf("flag contribution: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("contribution %s already applied: %w", e.SourceContributionID, repository.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO skill_confidence (employee_id, skill, confidence, source, status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (employee_id, skill) DO UPDATE SET
				confidence = excluded.confidence, source = excluded.source,
				status = excluded.status, updated_at = excluded.updated_at`,
			e.EmployeeID, e.Skill, e.NewConfidence, string(model.SourceContribution), string(model.SkillValidated),
			formatTime(e.AppliedAt)); err != nil {
			return fmt.Errorf("write confidence: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO confidence_log (`+confidenceLogColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.EmployeeID, e.Skill, e.SourceContributionID, e.OldConfidence, e.NewConfidence,
			e.Increment, e.BaseImpact, e.RoleMultiplier, e.DiminishingFactor, string(e.ContributionLevel), string(e.Role),
			e.Period, e.TablesVersion, formatTime(e.AppliedAt)); err != nil {
			if isConstraint(err) {
				return fmt.Errorf("confidence log for %s exists: %w", e.SourceContributionID, repository.ErrConflict)
			}
			return fmt.Errorf("insert confidence log: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO period_usage (employee_id, skill, period, confidence_gain, applied_count)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT (employee_id, skill, period) DO UPDATE SET
				confidence_gain = confidence_gain + excluded.confidence_gain,
				applied_count = applied_count + 1`,
			e.EmployeeID, e.Skill, e.Period, e.Increment); err != nil {
			return fmt.Errorf("bump period usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.ConfidenceLogEntry{}, err
	}
	return e, nil
}

// AwardPoints persists one award in a transaction.
func (s *Store) AwardPoints(ctx context.Context, e model.AwardLogEntry, expectedUsed int) (model.AwardLogEntry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := getContribution(ctx, tx, e.SourceContributionID)
		if err != nil {
			return err
		}
		if err := repository.CheckAwardable(&c, &e); err != nil {
			return err
		}
		u, err := periodUsage(ctx, tx, e.EmployeeID, e.Skill, e.Period)
		if err != nil {
			return err
		}
		if u.PointsAwarded != expectedUsed {
			return fmt.Errorf("period points for %s moved from %d to %d: %w", e.Skill, expectedUsed, u.PointsAwarded, repository.ErrConflict)
		}

		res, err := tx.ExecContext(ctx, `UPDATE contributions SET points_awarded = 1
			WHERE id = ? AND applied_to_confidence = 1 AND points_awarded = 0`, e.SourceContributionID)
		if err != nil {
			return fmt.Errorf("flag contribution: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("contribution %s already awarded: %w", e.SourceContributionID, repository.ErrConflict)
		}

		at := formatTime(e.AwardedAt)
		if _, err := tx.ExecContext(ctx, `INSERT INTO helix_points (employee_id, total_points, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (employee_id) DO UPDATE SET total_points = total_points + excluded.total_points, updated_at = excluded.updated_at`,
			e.EmployeeID, e.PointsAwarded, at); err != nil {
			return fmt.Errorf("bump total points: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO skill_points (employee_id, skill, points) VALUES (?, ?, ?)
			ON CONFLICT (employee_id, skill) DO UPDATE SET points = points + excluded.points`,
			e.EmployeeID, e.Skill, e.PointsAwarded); err != nil {
			return fmt.Errorf("bump skill points: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT total_points FROM helix_points WHERE employee_id = ?`, e.EmployeeID).
			Scan(&e.TotalPointsAfter); err != nil {
			return fmt.Errorf("read total points: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO award_log (`+awardLogColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.EmployeeID, e.Skill, e.SourceContributionID, e.PointsAwarded, e.TotalPointsAfter,
			e.BasePoints, e.RoleMultiplier, e.ConfidenceMultiplier, e.RarityMultiplier, e.ConfidenceDelta,
			string(e.ContributionLevel), string(e.Role), boolInt(e.Truncated), e.Period, e.TablesVersion, at); err != nil {
			if isConstraint(err) {
				return fmt.Errorf("award log for %s exists: %w", e.SourceContributionID, repository.ErrConflict)
			}
			return fmt.Errorf("insert award log: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO period_usage (employee_id, skill, period, points_awarded)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (employee_id, skill, period) DO UPDATE SET points_awarded = points_awarded + excluded.points_awarded`,
			e.EmployeeID, e.Skill, e.Period, e.PointsAwarded); err != nil {
			return fmt.Errorf("bump period usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.AwardLogEntry{}, err
	}
	return e, nil
}

// FindConfidenceLog returns the audit entry of a contribution.
func (s *Store) FindConfidenceLog(ctx context.Context, contributionID string) (model.ConfidenceLogEntry, error) {
	e, err := scanConfidenceLog(s.db.QueryRowContext(ctx, `SELECT `+confidenceLogColumns+`
		FROM confidence_log WHERE source_contribution_id = ?`, contributionID))
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("confidence log for %s: %w", contributionID, repository.ErrNotFound)
	}
	if err != nil {
		return e, fmt.Errorf("find confidence log: %w", err)
	}
	return e, nil
}

// ListConfidenceLogs returns an employee's confidence audit trail, oldest first.
func (s *Store) ListConfidenceLogs(ctx context.Context, employeeID string) ([]model.ConfidenceLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+confidenceLogColumns+`
		FROM confidence_log WHERE employee_id = ? ORDER BY seq`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list confidence logs: %w", err)
	}
	defer rows.Close()
	out := make([]model.ConfidenceLogEntry, 0)
	for rows.Next() {
		e, err := scanConfidenceLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan confidence log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAwardLogs returns an employee's award audit trail, oldest first.
func (s *Store) ListAwardLogs(ctx context.Context, employeeID string) ([]model.AwardLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+awardLogColumns+`
		FROM award_log WHERE employee_id = ? ORDER BY seq`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list award logs: %w", err)
	}
	defer rows.Close()
	out := make([]model.AwardLogEntry, 0)
	for rows.Next() {
		e, err := scanAwardLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan award log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
