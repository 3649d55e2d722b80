// Package api exposes the award pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/helix/internal/domain/errs"
)

const maxBodyBytes = 1 << 20

// Dependencies bundles everything the handlers call. The app service
// satisfies it; handlers only see the slice they need.
type Dependencies interface {
	ContributionDependencies
	RunDependencies
	EmployeeDependencies
	StatsProvider
	Pinger
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	contributionsHandler *ContributionsHandler
	runsHandler          *RunsHandler
	employeesHandler     *EmployeesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:        NewHealthHandler(deps),
		statsHandler:         NewStatsHandler(deps),
		contributionsHandler: NewContributionsHandler(deps),
		runsHandler:          NewRunsHandler(deps),
		employeesHandler:     NewEmployeesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	handle("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	handle("GET /stats", "stats", s.statsHandler.HandleStats)

	c := s.contributionsHandler
	handle("POST /contributions", "contributions_submit", c.HandleSubmit)
	handle("GET /contributions", "contributions_list", c.HandleList)
	handle("GET /contributions/pending", "contributions_pending", c.HandlePending)
	handle("GET /contributions/suggested-impact", "suggested_impact", c.HandleSuggestedImpact)
	handle("GET /contributions/{id}", "contributions_get", c.HandleGet)
	handle("POST /contributions/{id}/validate", "contributions_validate", c.HandleValidate)
	handle("POST /contributions/{id}/reject", "contributions_reject", c.HandleReject)

	handle("POST /runs/{stage}", "runs", s.runsHandler.HandleRun)
	handle("GET /runs/last", "runs_last", s.statsHandler.HandleLastRuns)

	e := s.employeesHandler
	handle("GET /employees/{id}/confidence", "employee_confidence", e.HandleConfidence)
	handle("GET /employees/{id}/confidence/preview", "employee_confidence_preview", e.HandlePreview)
	handle("GET /employees/{id}/points", "employee_points", e.HandlePoints)
	handle("GET /employees/{id}/summary", "employee_summary", e.HandleSummary)
	handle("GET /employees/{id}/confidence-log", "employee_confidence_log", e.HandleConfidenceLog)
	handle("GET /employees/{id}/award-log", "employee_award_log", e.HandleAwardLog)
	handle("POST /employees/{id}/baseline", "employee_baseline", e.HandleBaseline)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = errs.Message(err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError answers with the status the error kind maps to.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errs.WrapKind(op, ErrBadRequest, fmt.Errorf("invalid json body: %w", err))
	}
	return nil
}
