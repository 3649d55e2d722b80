// Package review records contributions and gates them through manager review.
package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/internal/domain/scoring"
	"github.com/okian/helix/pkg/logger"
	"github.com/okian/helix/pkg/metrics"
)

// Store is the persistence the review gate needs.
type Store interface {
	CreateContribution(ctx context.Context, c model.Contribution) error
	GetContribution(ctx context.Context, id string) (model.Contribution, error)
	ListContributions(ctx context.Context, f repository.ContributionFilter) ([]model.Contribution, error)
	ReviewContribution(ctx context.Context, r repository.Review) (model.Contribution, error)
}

// SubmitInput is a contribution as reported by an employee.
type SubmitInput struct {
	EmployeeID       string  `json:"employee_id"`
	EmployeeName     string  `json:"employee_name,omitempty"`
	ProjectID        string  `json:"project_id"`
	ProjectName      string  `json:"project_name,omitempty"`
	SkillUsed        string  `json:"skill_used"`
	Role             string  `json:"role_in_project,omitempty"`
	Level            string  `json:"contribution_level,omitempty"`
	ConfidenceImpact float64 `json:"confidence_impact,omitempty"`
}

// Service is the contribution store and validation gate.
type Service struct {
	store  Store
	scorer *scoring.Scorer
	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

// New creates a review Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		scorer: scoring.New(),
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records a new Pending contribution.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (model.Contribution, error) {
	const op = "review.Submit"

	c, err := s.normalize(in)
	if err != nil {
		return model.Contribution{}, errs.WrapKind(op, errs.ErrValidation, err)
	}
	if err := s.store.CreateContribution(ctx, c); err != nil {
		return model.Contribution{}, errs.Wrap(op, err)
	}
	metrics.RecordContributionSubmitted()
	s.logger.Info(ctx, "contribution submitted",
		logger.String("contribution_id", c.ID),
		logger.String("employee_id", c.EmployeeID),
		logger.String("skill", c.SkillUsed),
	)
	return c, nil
}

func (s *Service) normalize(in SubmitInput) (model.Contribution, error) {
	var missing []string
	employee := strings.TrimSpace(in.EmployeeID)
	project := strings.TrimSpace(in.ProjectID)
	skill := strings.TrimSpace(in.SkillUsed)
	if employee == "" {
		missing = append(missing, "employee_id")
	}
	if project == "" {
		missing = append(missing, "project_id")
	}
	if skill == "" {
		missing = append(missing, "skill_used")
	}
	if len(missing) > 0 {
		return model.Contribution{}, errors.New("missing required fields: " + strings.Join(missing, ", "))
	}
	if employee == model.AllEmployees {
		return model.Contribution{}, fmt.Errorf("employee_id %q is reserved for runs over every employee", model.AllEmployees)
	}

	role, err := model.ParseRole(in.Role)
	if err != nil {
		return model.Contribution{}, err
	}
	level, err := model.ParseLevel(in.Level)
	if err != nil {
		return model.Contribution{}, err
	}
	if in.ConfidenceImpact < 0 || math.IsNaN(in.ConfidenceImpact) || math.IsInf(in.ConfidenceImpact, 0) {
		return model.Contribution{}, errors.New("confidence_impact must be a non-negative number")
	}

	return model.Contribution{
		ID:               s.newID(),
		EmployeeID:       employee,
		EmployeeName:     strings.TrimSpace(in.EmployeeName),
		ProjectID:        project,
		ProjectName:      strings.TrimSpace(in.ProjectName),
		SkillUsed:        skill,
		Role:             role,
		Level:            level,
		ConfidenceImpact: in.ConfidenceImpact,
		Status:           model.StatusPending,
		SubmittedAt:      s.now().UTC(),
	}, nil
}

// Validate accepts a Pending contribution.
func (s *Service) Validate(ctx context.Context, id, reviewerID, note string) (model.Contribution, error) {
	const op = "review.Validate"

	if err := requireIDs(id, reviewerID); err != nil {
		return model.Contribution{}, errs.WrapKind(op, errs.ErrValidation, err)
	}
	c, err := s.store.ReviewContribution(ctx, repository.Review{
		ContributionID: id,
		Status:         model.StatusValidated,
		ReviewerID:     strings.TrimSpace(reviewerID),
		ManagerNote:    strings.TrimSpace(note),
		At:             s.now().UTC(),
	})
	if err != nil {
		return model.Contribution{}, transitionError(op, err)
	}
	metrics.RecordReview("validated")
	s.logger.Info(ctx, "contribution validated",
		logger.String("contribution_id", id),
		logger.String("reviewer_id", reviewerID),
	)
	return c, nil
}

// Reject declines a Pending contribution with feedback for the employee.
func (s *Service) Reject(ctx context.Context, id, reviewerID, feedback string) (model.Contribution, error) {
	const op = "review.Reject"

	if err := requireIDs(id, reviewerID); err != nil {
		return model.Contribution{}, errs.WrapKind(op, errs.ErrValidation, err)
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return model.Contribution{}, errs.Newf(op, errs.ErrValidation, "feedback message is required")
	}
	at := s.now().UTC()
	reviewer := strings.TrimSpace(reviewerID)
	c, err := s.store.ReviewContribution(ctx, repository.Review{
		ContributionID: id,
		Status:         model.StatusRejected,
		ReviewerID:     reviewer,
		Feedback:       &model.Feedback{Message: feedback, CreatedBy: reviewer, CreatedAt: at},
		At:             at,
	})
	if err != nil {
		return model.Contribution{}, transitionError(op, err)
	}
	metrics.RecordReview("rejected")
	s.logger.Info(ctx, "contribution rejected",
		logger.String("contribution_id", id),
		logger.String("reviewer_id", reviewerID),
	)
	return c, nil
}

func requireIDs(id, reviewerID string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("contribution id is required")
	}
	if strings.TrimSpace(reviewerID) == "" {
		return errors.New("reviewer id is required")
	}
	return nil
}

// transitionError reports a refused review as a state error. A missing
// contribution is a state error too, but keeps ErrNotFound in its chain.
func transitionError(op string, err error) error {
	if errors.Is(err, errs.ErrConflict) || errors.Is(err, errs.ErrNotFound) {
		return errs.WrapKind(op, errs.ErrState, err)
	}
	return errs.Wrap(op, err)
}

// ListPendingForReview returns the review queue, newest submission first.
func (s *Service) ListPendingForReview(ctx context.Context) ([]model.Contribution, error) {
	out, err := s.store.ListContributions(ctx, repository.ContributionFilter{Status: model.StatusPending})
	if err != nil {
		return nil, errs.Wrap("review.ListPendingForReview", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Get returns one contribution.
func (s *Service) Get(ctx context.Context, id string) (model.Contribution, error) {
	c, err := s.store.GetContribution(ctx, id)
	if err != nil {
		return model.Contribution{}, errs.Wrap("review.Get", err)
	}
	return c, nil
}

// ListForEmployee returns an employee's contributions, oldest first,
// optionally narrowed to one status.
func (s *Service) ListForEmployee(ctx context.Context, employeeID string, status model.Status) ([]model.Contribution, error) {
	const op = "review.ListForEmployee"
	if strings.TrimSpace(employeeID) == "" {
		return nil, errs.Newf(op, errs.ErrValidation, "employee id is required")
	}
	out, err := s.store.ListContributions(ctx, repository.ContributionFilter{EmployeeID: employeeID, Status: status})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	return out, nil
}

// EmployeeSummary counts an employee's contributions by status and skill.
func (s *Service) EmployeeSummary(ctx context.Context, employeeID string) (model.EmployeeSummary, error) {
	cs, err := s.ListForEmployee(ctx, employeeID, "")
	if err != nil {
		return model.EmployeeSummary{}, err
	}
	sum := model.EmployeeSummary{EmployeeID: employeeID, Skills: map[string]model.SkillSummary{}}
	for i := range cs {
		c := &cs[i]
		sum.Total++
		sk := sum.Skills[c.SkillUsed]
		sk.Total++
		switch c.Status {
		case model.StatusValidated:
			sum.Validated++
			sk.Validated++
			sk.TotalImpact = scoring.Round2(sk.TotalImpact + c.ConfidenceImpact)
		case model.StatusPending:
			sum.Pending++
		case model.StatusRejected:
			sum.Rejected++
		}
		sum.Skills[c.SkillUsed] = sk
	}
	return sum, nil
}

// SuggestedImpact proposes a confidence impact for the submit form.
func (s *Service) SuggestedImpact(level, role string) (float64, error) {
	const op = "review.SuggestedImpact"
	l, err := model.ParseLevel(level)
	if err != nil {
		return 0, errs.WrapKind(op, errs.ErrValidation, err)
	}
	r, err := model.ParseRole(role)
	if err != nil {
		return 0, errs.WrapKind(op, errs.ErrValidation, err)
	}
	return s.scorer.SuggestedImpact(l, r), nil
}
