package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/helix/internal/domain/model"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the helix HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Code = "unknown"
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type list[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// SubmitRequest mirrors POST /contributions.
type SubmitRequest struct {
	EmployeeID       string  `json:"employee_id" yaml:"employee_id"`
	EmployeeName     string  `json:"employee_name,omitempty" yaml:"employee_name"`
	ProjectID        string  `json:"project_id" yaml:"project_id"`
	ProjectName      string  `json:"project_name,omitempty" yaml:"project_name"`
	SkillUsed        string  `json:"skill_used" yaml:"skill_used"`
	Role             string  `json:"role_in_project,omitempty" yaml:"role_in_project"`
	Level            string  `json:"contribution_level,omitempty" yaml:"contribution_level"`
	ConfidenceImpact float64 `json:"confidence_impact,omitempty" yaml:"confidence_impact"`
}

// Submit creates a Pending contribution.
func (c *Client) Submit(ctx context.Context, r SubmitRequest) (model.Contribution, error) {
	var out model.Contribution
	err := c.do(ctx, http.MethodPost, "/contributions", r, &out)
	return out, err
}

// Validate approves a contribution.
func (c *Client) Validate(ctx context.Context, id, reviewer, note string) (model.Contribution, error) {
	var out model.Contribution
	body := map[string]string{"reviewer_id": reviewer, "manager_note": note}
	err := c.do(ctx, http.MethodPost, "/contributions/"+url.PathEscape(id)+"/validate", body, &out)
	return out, err
}

// Reject rejects a contribution with feedback.
func (c *Client) Reject(ctx context.Context, id, reviewer, feedback string) (model.Contribution, error) {
	var out model.Contribution
	body := map[string]string{"reviewer_id": reviewer, "feedback": feedback}
	err := c.do(ctx, http.MethodPost, "/contributions/"+url.PathEscape(id)+"/reject", body, &out)
	return out, err
}

// Pending returns the review queue.
func (c *Client) Pending(ctx context.Context) ([]model.Contribution, error) {
	var out list[model.Contribution]
	err := c.do(ctx, http.MethodGet, "/contributions/pending", nil, &out)
	return out.Items, err
}

// Contributions lists an employee's contributions.
func (c *Client) Contributions(ctx context.Context, employeeID string) ([]model.Contribution, error) {
	var out list[model.Contribution]
	err := c.do(ctx, http.MethodGet, "/contributions?employee_id="+url.QueryEscape(employeeID), nil, &out)
	return out.Items, err
}

// RunResult holds whichever run kind was requested.
type RunResult struct {
	Stage      string
	Confidence *model.ConfidenceRun
	Points     *model.PointsRun
	Pipeline   *model.PipelineRun
}

// Success reports the run's overall success flag.
func (r *RunResult) Success() bool {
	switch {
	case r.Pipeline != nil:
		return r.Pipeline.Success
	case r.Confidence != nil:
		return r.Confidence.Success
	case r.Points != nil:
		return r.Points.Success
	}
	return false
}

// Run triggers stage for target.
func (c *Client) Run(ctx context.Context, stage, target string) (*RunResult, error) {
	path := "/runs/" + url.PathEscape(stage) + "?employee_id=" + url.QueryEscape(target)
	res := &RunResult{Stage: stage}
	var out any
	switch stage {
	case "confidence":
		res.Confidence = &model.ConfidenceRun{}
		out = res.Confidence
	case "points":
		res.Points = &model.PointsRun{}
		out = res.Points
	case "pipeline":
		res.Pipeline = &model.PipelineRun{}
		out = res.Pipeline
	default:
		return nil, fmt.Errorf("unknown stage %q: must be confidence, points or pipeline", stage)
	}
	if err := c.do(ctx, http.MethodPost, path, nil, out); err != nil {
		return nil, err
	}
	return res, nil
}

// Confidence returns an employee's skill confidence.
func (c *Client) Confidence(ctx context.Context, employeeID string) (model.SkillConfidence, error) {
	var out model.SkillConfidence
	err := c.do(ctx, http.MethodGet, "/employees/"+url.PathEscape(employeeID)+"/confidence", nil, &out)
	return out, err
}

// Points returns an employee's points balance.
func (c *Client) Points(ctx context.Context, employeeID string) (model.HelixPoints, error) {
	var out model.HelixPoints
	err := c.do(ctx, http.MethodGet, "/employees/"+url.PathEscape(employeeID)+"/points", nil, &out)
	return out, err
}

// ConfidenceLog returns an employee's confidence audit trail.
func (c *Client) ConfidenceLog(ctx context.Context, employeeID string) ([]model.ConfidenceLogEntry, error) {
	var out list[model.ConfidenceLogEntry]
	err := c.do(ctx, http.MethodGet, "/employees/"+url.PathEscape(employeeID)+"/confidence-log", nil, &out)
	return out.Items, err
}

// AwardLog returns an employee's award audit trail.
func (c *Client) AwardLog(ctx context.Context, employeeID string) ([]model.AwardLogEntry, error) {
	var out list[model.AwardLogEntry]
	err := c.do(ctx, http.MethodGet, "/employees/"+url.PathEscape(employeeID)+"/award-log", nil, &out)
	return out.Items, err
}

// Baseline seeds resume skills.
func (c *Client) Baseline(ctx context.Context, employeeID string, profile model.ResumeProfile) ([]string, error) {
	var out struct {
		Added []string `json:"added"`
	}
	err := c.do(ctx, http.MethodPost, "/employees/"+url.PathEscape(employeeID)+"/baseline", profile, &out)
	return out.Added, err
}
