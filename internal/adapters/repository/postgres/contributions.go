package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/model"
)

const contributionColumns = `id, employee_id, employee_name, project_id, project_name, skill_used,
	role_in_project, contribution_level, confidence_impact, status, submitted_at,
	validated_at, validated_by, manager_note, feedback_message, feedback_by, feedback_at,
	applied_to_confidence, points_awarded`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanContribution(r pgx.Row) (model.Contribution, error) {
	var (
		c                   model.Contribution
		role, level, status string
		validatedAt, fbAt   *time.Time
		fbMsg, fbBy         *string
	)
	err := r.Scan(&c.ID, &c.EmployeeID, &c.EmployeeName, &c.ProjectID, &c.ProjectName, &c.SkillUsed,
		&role, &level, &c.ConfidenceImpact, &status, &c.SubmittedAt,
		&validatedAt, &c.ValidatedBy, &c.ManagerNote, &fbMsg, &fbBy, &fbAt,
		&c.AppliedToConfidence, &c.PointsAwarded)
	if err != nil {
		return model.Contribution{}, err
	}
	c.Role = model.Role(role)
	c.Level = model.Level(level)
	c.Status = model.Status(status)
	c.SubmittedAt = utc(c.SubmittedAt)
	c.ValidatedAt = utcPtr(validatedAt)
	if fbMsg != nil {
		fb := &model.Feedback{Message: *fbMsg}
		if fbBy != nil {
			fb.CreatedBy = *fbBy
		}
		if fbAt != nil {
			fb.CreatedAt = utc(*fbAt)
		}
		c.RejectionFeedback = fb
	}
	return c, nil
}

func feedbackArgs(fb *model.Feedback) (msg, by *string, at *time.Time) {
	if fb == nil {
		return nil, nil, nil
	}
	t := fb.CreatedAt.UTC()
	return &fb.Message, &fb.CreatedBy, &t
}

// CreateContribution inserts c.
func (s *Store) CreateContribution(ctx context.Context, c model.Contribution) error {
	fbMsg, fbBy, fbAt := feedbackArgs(c.RejectionFeedback)
	_, err := s.pool.Exec(ctx, `INSERT INTO contributions (`+contributionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		c.ID, c.EmployeeID, c.EmployeeName, c.ProjectID, c.ProjectName, c.SkillUsed,
		string(c.Role), string(c.Level), c.ConfidenceImpact, string(c.Status), c.SubmittedAt.UTC(),
		utcPtr(c.ValidatedAt), c.ValidatedBy, c.ManagerNote, fbMsg, fbBy, fbAt,
		c.AppliedToConfidence, c.PointsAwarded)
	if isUniqueViolation(err) {
		return fmt.Errorf("contribution %s already exists: %w", c.ID, repository.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func getContribution(ctx context.Context, q querier, id string, forUpdate bool) (model.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	c, err := scanContribution(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contribution{}, fmt.Errorf("contribution %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return model.Contribution{}, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}

// GetContribution returns one contribution.
func (s *Store) GetContribution(ctx context.Context, id string) (model.Contribution, error) {
	return getContribution(ctx, s.pool, id, false)
}

// ListContributions returns matches ordered by submitted_at then id.
func (s *Store) ListContributions(ctx context.Context, f repository.ContributionFilter) ([]model.Contribution, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.EmployeeID != "" {
		where = append(where, "employee_id = "+arg(f.EmployeeID))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.Applied != nil {
		where = append(where, "applied_to_confidence = "+arg(*f.Applied))
	}
	if f.Awarded != nil {
		where = append(where, "points_awarded = "+arg(*f.Awarded))
	}
	query := `SELECT ` + contributionColumns + ` FROM contributions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Contribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return out, nil
}

// ReviewContribution moves a Pending contribution to its terminal status.
func (s *Store) ReviewContribution(ctx context.Context, r repository.Review) (model.Contribution, error) {
	var out model.Contribution
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		current, err := getContribution(ctx, tx, r.ContributionID, true)
		if err != nil {
			return err
		}
		if current.Status != model.StatusPending {
			return fmt.Errorf("contribution %s is %s: %w", current.ID, current.Status, repository.ErrConflict)
		}
		fbMsg, fbBy, fbAt := feedbackArgs(r.Feedback)
		if _, err := tx.Exec(ctx, `UPDATE contributions
			SET status = $1, validated_by = $2, validated_at = $3, manager_note = $4,
			    feedback_message = $5, feedback_by = $6, feedback_at = $7
			WHERE id = $8`,
			string(r.Status), r.ReviewerID, r.At.UTC(), r.ManagerNote, fbMsg, fbBy, fbAt, r.ContributionID); err != nil {
			return fmt.Errorf("review contribution: %w", err)
		}
		out, err = getContribution(ctx, tx, r.ContributionID, false)
		return err
	})
	return out, err
}
