package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/model"
)

// RunDependencies defines the batch operations.
type RunDependencies interface {
	RunConfidenceUpdate(ctx context.Context, target string) model.ConfidenceRun
	RunPointsAward(ctx context.Context, target string) model.PointsRun
	RunPipeline(ctx context.Context, target string) model.PipelineRun
}

// RunsHandler handles POST /runs/{stage}.
type RunsHandler struct {
	deps RunDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleRun runs one stage for ?employee_id=<id>|all. A batch answers 200
// even when items failed; the result carries success and per-item errors.
func (h *RunsHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.run"
	target := r.URL.Query().Get("employee_id")
	if target == "" {
		writeDomainError(w, errs.Newf(op, errs.ErrValidation, "employee_id is required (an id or %q)", model.AllEmployees))
		return
	}

	ctx := r.Context()
	switch stage := r.PathValue("stage"); stage {
	case "confidence":
		writeJSON(w, http.StatusOK, h.deps.RunConfidenceUpdate(ctx, target))
	case "points":
		writeJSON(w, http.StatusOK, h.deps.RunPointsAward(ctx, target))
	case "pipeline":
		writeJSON(w, http.StatusOK, h.deps.RunPipeline(ctx, target))
	default:
		writeError(w, http.StatusNotFound, "not_found", errs.WrapKind(op, ErrUnknownRun, fmt.Errorf("unknown run stage %q", stage)))
	}
}
