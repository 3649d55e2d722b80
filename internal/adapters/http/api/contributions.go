package api

import (
	"context"
	"net/http"

	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/internal/domain/review"
)

// ContributionDependencies defines the review-gate operations.
type ContributionDependencies interface {
	SubmitContribution(ctx context.Context, in review.SubmitInput) (model.Contribution, error)
	ValidateContribution(ctx context.Context, id, reviewerID, note string) (model.Contribution, error)
	RejectContribution(ctx context.Context, id, reviewerID, feedback string) (model.Contribution, error)
	GetContribution(ctx context.Context, id string) (model.Contribution, error)
	ListContributions(ctx context.Context, employeeID string, status model.Status) ([]model.Contribution, error)
	ListPending(ctx context.Context) ([]model.Contribution, error)
	SuggestedImpact(level, role string) (float64, error)
}

// ContributionsHandler handles /contributions requests.
type ContributionsHandler struct {
	deps ContributionDependencies
}

// NewContributionsHandler creates a new contributions handler.
func NewContributionsHandler(deps ContributionDependencies) *ContributionsHandler {
	return &ContributionsHandler{deps: deps}
}

type validateRequest struct {
	ReviewerID  string `json:"reviewer_id"`
	ManagerNote string `json:"manager_note"`
}

type rejectRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Feedback   string `json:"feedback"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// HandleSubmit handles POST /contributions.
func (h *ContributionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req review.SubmitInput
	if err := decodeBody(w, r, "api.submit", &req); err != nil {
		writeDomainError(w, err)
		return
	}
	c, err := h.deps.SubmitContribution(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleList handles GET /contributions?employee_id=&status=.
func (h *ContributionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_contributions"
	q := r.URL.Query()
	var status model.Status
	if raw := q.Get("status"); raw != "" {
		s, err := model.ParseStatus(raw)
		if err != nil {
			writeDomainError(w, errs.WrapKind(op, errs.ErrValidation, err))
			return
		}
		status = s
	}
	out, err := h.deps.ListContributions(r.Context(), q.Get("employee_id"), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(out))
}

// HandlePending handles GET /contributions/pending.
func (h *ContributionsHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.ListPending(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(out))
}

// HandleGet handles GET /contributions/{id}.
func (h *ContributionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.GetContribution(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleValidate handles POST /contributions/{id}/validate.
func (h *ContributionsHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeBody(w, r, "api.validate", &req); err != nil {
		writeDomainError(w, err)
		return
	}
	c, err := h.deps.ValidateContribution(r.Context(), r.PathValue("id"), req.ReviewerID, req.ManagerNote)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleReject handles POST /contributions/{id}/reject.
func (h *ContributionsHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeBody(w, r, "api.reject", &req); err != nil {
		writeDomainError(w, err)
		return
	}
	c, err := h.deps.RejectContribution(r.Context(), r.PathValue("id"), req.ReviewerID, req.Feedback)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type suggestedImpactResponse struct {
	Level           string  `json:"level"`
	Role            string  `json:"role"`
	SuggestedImpact float64 `json:"suggested_impact"`
}

// HandleSuggestedImpact handles GET /contributions/suggested-impact?level=&role=.
func (h *ContributionsHandler) HandleSuggestedImpact(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v, err := h.deps.SuggestedImpact(q.Get("level"), q.Get("role"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestedImpactResponse{Level: q.Get("level"), Role: q.Get("role"), SuggestedImpact: v})
}
