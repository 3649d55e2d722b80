package postgres

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/model"
)

const confidenceLogColumns = `id, employee_id, skill, source_contribution_id, old_confidence, new_confidence,
	increment, base_impact, role_multiplier, diminishing_factor, contribution_level, role,
	period, tables_version, applied_at`

const awardLogColumns = `id, employee_id, skill, source_contribution_id, points_awarded, total_points_after,
	base_points, role_multiplier, confidence_multiplier, rarity_multiplier, confidence_delta,
	contribution_level, role, truncated, period, tables_version, awarded_at`

func scanConfidenceLog(r pgx.Row) (model.ConfidenceLogEntry, error) {
	var (
		e           model.ConfidenceLogEntry
		level, role string
	)
	err := r.Scan(&e.ID, &e.EmployeeID, &e.Skill, &e.SourceContributionID, &e.OldConfidence, &e.NewConfidence,
		&e.Increment, &e.BaseImpact, &e.RoleMultiplier, &e.DiminishingFactor, &level, &role,
		&e.Period, &e.TablesVersion, &e.AppliedAt)
	e.ContributionLevel = model.Level(level)
	e.Role = model.Role(role)
	e.AppliedAt = utc(e.AppliedAt)
	return e, err
}

func scanAwardLog(r pgx.Row) (model.AwardLogEntry, error) {
	var (
		e           model.AwardLogEntry
		level, role string
	)
	err := r.Scan(&e.ID, &e.EmployeeID, &e.Skill, &e.SourceContributionID, &e.PointsAwarded, &e.TotalPointsAfter,
		&e.BasePoints, &e.RoleMultiplier, &e.ConfidenceMultiplier, &e.RarityMultiplier, &e.ConfidenceDelta,
		&level, &role, &e.Truncated, &e.Period, &e.TablesVersion, &e.AwardedAt)
	e.ContributionLevel = model.Level(level)
	e.Role = model.Role(role)
	e.AwardedAt = utc(e.AwardedAt)
	return e, err
}

// GetSkillConfidence assembles the employee's skills with their history.
func (s *Store) GetSkillConfidence(ctx context.Context, employeeID string) (model.SkillConfidence, error) {
	out := model.SkillConfidence{EmployeeID: employeeID, Skills: map[string]model.SkillEntry{}}

	rows, err := s.pool.Query(ctx, `SELECT skill, confidence, source, status, updated_at
		FROM skill_confidence WHERE employee_id = $1`, employeeID)
	if err != nil {
		return out, fmt.Errorf("get skill confidence: %w", err)
	}
	for rows.Next() {
		var (
			skill, source, status string
			updated               time.Time
			e                     model.SkillEntry
		)
		if err := rows.Scan(&skill, &e.Confidence, &source, &status, &updated); err != nil {
			rows.Close()
			return out, fmt.Errorf("scan skill confidence: %w", err)
		}
		e.Source = model.Source(source)
		e.Status = model.SkillStatus(status)
		e.History = []model.HistoryEntry{}
		out.Skills[skill] = e
		if updated.After(out.UpdatedAt) {
			out.UpdatedAt = updated.UTC()
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("get skill confidence: %w", err)
	}

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
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, skill := range slices.Sorted(maps.Keys(entries)) {
			e := entries[skill]
			tag, err := tx.Exec(ctx, `INSERT INTO skill_confidence (employee_id, skill, confidence, source, status, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (employee_id, skill) DO NOTHING`,
				employeeID, skill, e.Confidence, string(e.Source), string(e.Status), at.UTC())
			if err != nil {
				return fmt.Errorf("seed skill %s: %w", skill, err)
			}
			if tag.RowsAffected() == 1 {
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
	err := s.pool.QueryRow(ctx, `SELECT total_points, updated_at FROM helix_points WHERE employee_id = $1`, employeeID).
		Scan(&out.TotalPoints, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("get points: %w", err)
	}
	out.UpdatedAt = utc(out.UpdatedAt)

	rows, err := s.pool.Query(ctx, `SELECT skill, points FROM skill_points WHERE employee_id = $1`, employeeID)
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

func periodUsage(ctx context.Context, q querier, employeeID, skill, period string, forUpdate bool) (model.PeriodUsage, error) {
	u := model.PeriodUsage{EmployeeID: employeeID, Skill: skill, Period: period}
	query := `SELECT confidence_gain, applied_count, points_awarded
		FROM period_usage WHERE employee_id = $1 AND skill = $2 AND period = $3`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	err := q.QueryRow(ctx, query, employeeID, skill, period).Scan(&u.ConfidenceGain, &u.AppliedCount, &u.PointsAwarded)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return u, fmt.Errorf("get period usage: %w", err)
	}
	return u, nil
}

// GetPeriodUsage returns the counters for one skill and month.
func (s *Store) GetPeriodUsage(ctx context.Context, employeeID, skill, period string) (model.PeriodUsage, error) {
	return periodUsage(ctx, s.pool, employeeID, skill, period, false)
}

// lockUsage makes sure the period row exists and holds its lock until the
// transaction ends, serializing writers of the same skill and month.
func lockUsage(ctx context.Context, tx pgx.Tx, employeeID, skill, period string) (model.PeriodUsage, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO period_usage (employee_id, skill, period)
		VALUES ($1, $2, $3) ON CONFLICT (employee_id, skill, period) DO NOTHING`,
		employeeID, skill, period); err != nil {
		return model.PeriodUsage{}, fmt.Errorf("ensure period usage: %w", err)
	}
	return periodUsage(ctx, tx, employeeID, skill, period, true)
}

// ApplyConfidence persists one confidence update in a transaction.
func (s *Store) ApplyConfidence(ctx context.Context, e model.ConfidenceLogEntry) (model.ConfidenceLogEntry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		c, err := getContribution(ctx, tx, e.SourceContributionID, true)
		if err != nil {
			return err
		}
		if err := repository.CheckApplicable(&c, &e); err != nil {
			return err
		}
		if _, err := lockUsage(ctx, tx, e.EmployeeID, e.Skill, e.Period); err != nil {
			return err
		}

		// A zero row stands in for a skill seen for the first time so it can be locked.
		if _, err := tx.Exec(ctx, `INSERT INTO skill_confidence (employee_id, skill, confidence, source, status, updated_at)
			VALUES ($1, $2, 0, $3, $4, $5) ON CONFLICT (employee_id, skill) DO NOTHING`,
			e.EmployeeID, e.Skill, string(model.SourceContribution), string(model.SkillValidated), e.AppliedAt.UTC()); err != nil {
			return fmt.Errorf("ensure confidence: %w", err)
		}
		var current float64
		if err := tx.QueryRow(ctx, `SELECT confidence FROM skill_confidence
			WHERE employee_id = $1 AND skill = $2 FOR UPDATE`, e.EmployeeID, e.Skill).Scan(&current); err != nil {
			return fmt.Errorf("read confidence: %w", err)
		}
		if !repository.ConfidenceMatches(current, e.OldConfidence) {
			return fmt.Errorf("skill %s moved from %.2f to %.2f: %w", e.Skill, e.OldConfidence, current, repository.ErrConflict)
		}

		if _, err := tx.Exec(ctx, `UPDATE contributions SET applied_to_confidence = TRUE WHERE id = $1`,
			e.SourceContributionID); err != nil {
			return fmt.Errorf("flag contribution: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE skill_confidence
			SET confidence = $3, source = $4, status = $5, updated_at = $6
			WHERE employee_id = $1 AND skill = $2`,
			e.EmployeeID, e.Skill, e.NewConfidence, string(model.SourceContribution), string(model.SkillValidated),
			e.AppliedAt.UTC()); err != nil {
			return fmt.Errorf("write confidence: %w", err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO confidence_log (`+confidenceLogColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			e.ID, e.EmployeeID, e.Skill, e.SourceContributionID, e.OldConfidence, e.NewConfidence,
			e.Increment, e.BaseImpact, e.RoleMultiplier, e.DiminishingFactor, string(e.ContributionLevel), string(e.Role),
			e.Period, e.TablesVersion, e.AppliedAt.UTC()); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("confidence log for %s exists: %w", e.SourceContributionID, repository.ErrConflict)
			}
			return fmt.Errorf("insert confidence log: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE period_usage
			SET confidence_gain = confidence_gain + $4, applied_count = applied_count + 1
			WHERE employee_id = $1 AND skill = $2 AND period = $3`,
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
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		c, err := getContribution(ctx, tx, e.SourceContributionID, true)
		if err != nil {
			return err
		}
		if err := repository.CheckAwardable(&c, &e); err != nil {
			return err
		}
		u, err := lockUsage(ctx, tx, e.EmployeeID, e.Skill, e.Period)
		if err != nil {
			return err
		}
		if u.PointsAwarded != expectedUsed {
			return fmt.Errorf("period points for %s moved from %d to %d: %w", e.Skill, expectedUsed, u.PointsAwarded, repository.ErrConflict)
		}

		if _, err := tx.Exec(ctx, `UPDATE contributions SET points_awarded = TRUE WHERE id = $1`,
			e.SourceContributionID); err != nil {
			return fmt.Errorf("flag contribution: %w", err)
		}

		at := e.AwardedAt.UTC()
		if err := tx.QueryRow(ctx, `INSERT INTO helix_points (employee_id, total_points, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (employee_id) DO UPDATE SET
				total_points = helix_points.total_points + EXCLUDED.total_points, updated_at = EXCLUDED.updated_at
			RETURNING total_points`,
			e.EmployeeID, e.PointsAwarded, at).Scan(&e.TotalPointsAfter); err != nil {
			return fmt.Errorf("bump total points: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO skill_points (employee_id, skill, points) VALUES ($1, $2, $3)
			ON CONFLICT (employee_id, skill) DO UPDATE SET points = skill_points.points + EXCLUDED.points`,
			e.EmployeeID, e.Skill, e.PointsAwarded); err != nil {
			return fmt.Errorf("bump skill points: %w", err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO award_log (`+awardLogColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			e.ID, e.EmployeeID, e.Skill, e.SourceContributionID, e.PointsAwarded, e.TotalPointsAfter,
			e.BasePoints, e.RoleMultiplier, e.ConfidenceMultiplier, e.RarityMultiplier, e.ConfidenceDelta,
			string(e.ContributionLevel), string(e.Role), e.Truncated, e.Period, e.TablesVersion, at); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("award log for %s exists: %w", e.SourceContributionID, repository.ErrConflict)
			}
			return fmt.Errorf("insert award log: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE period_usage SET points_awarded = points_awarded + $4
			WHERE employee_id = $1 AND skill = $2 AND period = $3`,
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
	e, err := scanConfidenceLog(s.pool.QueryRow(ctx, `SELECT `+confidenceLogColumns+`
		FROM confidence_log WHERE source_contribution_id = $1`, contributionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ConfidenceLogEntry{}, fmt.Errorf("confidence log for %s: %w", contributionID, repository.ErrNotFound)
	}
	if err != nil {
		return model.ConfidenceLogEntry{}, fmt.Errorf("find confidence log: %w", err)
	}
	return e, nil
}

// ListConfidenceLogs returns an employee's confidence audit trail, oldest first.
func (s *Store) ListConfidenceLogs(ctx context.Context, employeeID string) ([]model.ConfidenceLogEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+confidenceLogColumns+`
		FROM confidence_log WHERE employee_id = $1 ORDER BY seq`, employeeID)
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
	rows, err := s.pool.Query(ctx, `SELECT `+awardLogColumns+`
		FROM award_log WHERE employee_id = $1 ORDER BY seq`, employeeID)
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
