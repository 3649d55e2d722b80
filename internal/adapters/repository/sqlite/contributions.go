package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/model"
)

const contributionColumns = `id, employee_id, employee_name, project_id, project_name, skill_used,
	role_in_project, contribution_level, confidence_impact, status, submitted_at,
	validated_at, validated_by, manager_note, feedback_message, feedback_by, feedback_at,
	applied_to_confidence, points_awarded`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContribution(r rowScanner) (model.Contribution, error) {
	var (
		c                              model.Contribution
		submitted                      string
		validatedAt, fbMsg, fbBy, fbAt sql.NullString
		applied, awarded               int
	)
	err := r.Scan(&c.ID, &c.EmployeeID, &c.EmployeeName, &c.ProjectID, &c.ProjectName, &c.SkillUsed,
		&c.Role, &c.Level, &c.ConfidenceImpact, &c.Status, &submitted,
		&validatedAt, &c.ValidatedBy, &c.ManagerNote, &fbMsg, &fbBy, &fbAt,
		&applied, &awarded)
	if err != nil {
		return model.Contribution{}, err
	}
	if c.SubmittedAt, err = parseTime(submitted); err != nil {
		return model.Contribution{}, fmt.Errorf("submitted_at: %w", err)
	}
	if validatedAt.Valid {
		t, err := parseTime(validatedAt.String)
		if err != nil {
			return model.Contribution{}, fmt.Errorf("validated_at: %w", err)
		}
		c.ValidatedAt = &t
	}
	if fbMsg.Valid {
		fb := &model.Feedback{Message: fbMsg.String, CreatedBy: fbBy.String}
		if fbAt.Valid {
			if fb.CreatedAt, err = parseTime(fbAt.String); err != nil {
				return model.Contribution{}, fmt.Errorf("feedback_at: %w", err)
			}
		}
		c.RejectionFeedback = fb
	}
	c.AppliedToConfidence = applied == 1
	c.PointsAwarded = awarded == 1
	return c, nil
}

// CreateContribution inserts c.
func (s *Store) CreateContribution(ctx context.Context, c model.Contribution) error {
	var fbMsg, fbBy, fbAt sql.NullString
	if c.RejectionFeedback != nil {
		fbMsg = sql.NullString{String: c.RejectionFeedback.Message, Valid: true}
		fbBy = sql.NullString{String: c.RejectionFeedback.CreatedBy, Valid: true}
		fbAt = sql.NullString{String: formatTime(c.RejectionFeedback.CreatedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO contributions (`+contributionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.EmployeeID, c.EmployeeName, c.ProjectID, c.ProjectName, c.SkillUsed,
		string(c.Role), string(c.Level), c.ConfidenceImpact, string(c.Status), formatTime(c.SubmittedAt),
		nullTime(c.ValidatedAt), c.ValidatedBy, c.ManagerNote, fbMsg, fbBy, fbAt,
		boolInt(c.AppliedToConfidence), boolInt(c.PointsAwarded))
	if isConstraint(err) {
		return fmt.Errorf("contribution %s already exists: %w", c.ID, repository.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func getContribution(ctx context.Context, q queryRower, id string) (model.Contribution, error) {
	c, err := scanContribution(q.QueryRowContext(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contribution{}, fmt.Errorf("contribution %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return model.Contribution{}, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}

// GetContribution returns one contribution.
func (s *Store) GetContribution(ctx context.Context, id string) (model.Contribution, error) {
	return getContribution(ctx, s.db, id)
}

// ListContributions returns matches ordered by submitted_at then id.
func (s *Store) ListContributions(ctx context.Context, f repository.ContributionFilter) ([]model.Contribution, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Applied != nil {
		where = append(where, "applied_to_confidence = ?")
		args = append(args, boolInt(*f.Applied))
	}
	if f.Awarded != nil {
		where = append(where, "points_awarded = ?")
		args = append(args, boolInt(*f.Awarded))
	}
	query := `SELECT ` + contributionColumns + ` FROM contributions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// RFC3339Nano drops trailing zeros, so text order is not time order; sort in Go.
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	repository.SortBySubmission(out)
	return out, nil
}

// ReviewContribution moves a Pending contribution to its terminal status.
func (s *Store) ReviewContribution(ctx context.Context, r repository.Review) (model.Contribution, error) {
	var out model.Contribution
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var fbMsg, fbBy, fbAt sql.NullString
		if r.Feedback != nil {
			fbMsg = sql.NullString{String: r.Feedback.Message, Valid: true}
			fbBy = sql.NullString{String: r.Feedback.CreatedBy, Valid: true}
			fbAt = sql.NullString{String: formatTime(r.Feedback.CreatedAt), Valid: true}
		}
		res, err := tx.ExecContext(ctx, `UPDATE contributions
			SET status = ?, validated_by = ?, validated_at = ?, manager_note = ?,
			    feedback_message = ?, feedback_by = ?, feedback_at = ?
			WHERE id = ? AND status = 'Pending'`,
			string(r.Status), r.ReviewerID, formatTime(r.At), r.ManagerNote, fbMsg, fbBy, fbAt, r.ContributionID)
		if err != nil {
			return fmt.Errorf("review contribution: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("review contribution: %w", err)
		}
		current, err := getContribution(ctx, tx, r.ContributionID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("contribution %s is %s: %w", current.ID, current.Status, repository.ErrConflict)
		}
		out = current
		return nil
	})
	return out, err
}
