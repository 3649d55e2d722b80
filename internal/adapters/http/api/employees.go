package api

import (
	"context"
	"net/http"

	"github.com/okian/helix/internal/domain/model"
)

// EmployeeDependencies defines per-employee reads and the baseline seed.
type EmployeeDependencies interface {
	GetSkillConfidence(ctx context.Context, employeeID string) (model.SkillConfidence, error)
	PreviewConfidence(ctx context.Context, employeeID string) model.ConfidenceRun
	GetPoints(ctx context.Context, employeeID string) (model.HelixPoints, error)
	EmployeeSummary(ctx context.Context, employeeID string) (model.EmployeeSummary, error)
	ConfidenceLog(ctx context.Context, employeeID string) ([]model.ConfidenceLogEntry, error)
	AwardLog(ctx context.Context, employeeID string) ([]model.AwardLogEntry, error)
	InitializeBaseline(ctx context.Context, employeeID string, profile model.ResumeProfile) ([]string, error)
}

// EmployeesHandler handles /employees/{id}/... requests.
type EmployeesHandler struct {
	deps EmployeeDependencies
}

// NewEmployeesHandler creates a new employees handler.
func NewEmployeesHandler(deps EmployeeDependencies) *EmployeesHandler {
	return &EmployeesHandler{deps: deps}
}

func respond[T any](w http.ResponseWriter, v T, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleConfidence handles GET /employees/{id}/confidence.
func (h *EmployeesHandler) HandleConfidence(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.GetSkillConfidence(r.Context(), r.PathValue("id"))
	respond(w, v, err)
}

// HandlePreview handles GET /employees/{id}/confidence/preview.
func (h *EmployeesHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.PreviewConfidence(r.Context(), r.PathValue("id")))
}

// HandlePoints handles GET /employees/{id}/points.
func (h *EmployeesHandler) HandlePoints(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.GetPoints(r.Context(), r.PathValue("id"))
	respond(w, v, err)
}

// HandleSummary handles GET /employees/{id}/summary.
func (h *EmployeesHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.EmployeeSummary(r.Context(), r.PathValue("id"))
	respond(w, v, err)
}

// HandleConfidenceLog handles GET /employees/{id}/confidence-log.
func (h *EmployeesHandler) HandleConfidenceLog(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.ConfidenceLog(r.Context(), r.PathValue("id"))
	respond(w, newList(v), err)
}

// HandleAwardLog handles GET /employees/{id}/award-log.
func (h *EmployeesHandler) HandleAwardLog(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.AwardLog(r.Context(), r.PathValue("id"))
	respond(w, newList(v), err)
}

type baselineResponse struct {
	EmployeeID string   `json:"employee_id"`
	Added      []string `json:"added"`
}

// HandleBaseline handles POST /employees/{id}/baseline.
func (h *EmployeesHandler) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	var profile model.ResumeProfile
	if err := decodeBody(w, r, "api.baseline", &profile); err != nil {
		writeDomainError(w, err)
		return
	}
	id := r.PathValue("id")
	added, err := h.deps.InitializeBaseline(r.Context(), id, profile)
	respond(w, baselineResponse{EmployeeID: id, Added: added}, err)
}
