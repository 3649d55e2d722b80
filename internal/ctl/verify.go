package ctl

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

// Check is one verified property of an employee's balances.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Report is the outcome of Verify.
type Report struct {
	EmployeeID string  `json:"employee_id"`
	OK         bool    `json:"ok"`
	Checks     []Check `json:"checks"`
}

func (r *Report) add(name string, ok bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
	r.OK = r.OK && ok
}

// Verify cross-checks an employee's balances against the audit logs.
func Verify(ctx context.Context, c *Client, employeeID string) (*Report, error) {
	conf, err := c.Confidence(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	pts, err := c.Points(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	clog, err := c.ConfidenceLog(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	alog, err := c.AwardLog(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	cs, err := c.Contributions(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	r := &Report{EmployeeID: employeeID, OK: true, Checks: []Check{}}

	var outOfRange []string
	for _, skill := range slices.Sorted(maps.Keys(conf.Skills)) {
		if v := conf.Skills[skill].Confidence; v < 0 || v > 100 {
			outOfRange = append(outOfRange, fmt.Sprintf("%s=%.2f", skill, v))
		}
	}
	if len(outOfRange) == 0 {
		r.add("confidence_range", true, "%d skills within [0, 100]", len(conf.Skills))
	} else {
		r.add("confidence_range", false, "out of range: %v", outOfRange)
	}

	applied, awarded := 0, 0
	for i := range cs {
		if cs[i].AppliedToConfidence {
			applied++
		}
		if cs[i].PointsAwarded {
			awarded++
		}
	}
	r.add("confidence_log", len(clog) == applied && distinctSources(clog, func(i int) string { return clog[i].SourceContributionID }),
		"%d entries for %d applied contributions", len(clog), applied)
	r.add("award_log", len(alog) == awarded && distinctSources(alog, func(i int) string { return alog[i].SourceContributionID }),
		"%d entries for %d awarded contributions", len(alog), awarded)

	sum := 0
	for i := range alog {
		sum += alog[i].PointsAwarded
	}
	r.add("points_total", sum == pts.TotalPoints, "awards sum to %d, balance is %d", sum, pts.TotalPoints)
	return r, nil
}

func distinctSources[T any](entries []T, source func(i int) string) bool {
	seen := make(map[string]bool, len(entries))
	for i := range entries {
		id := source(i)
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <employee-id>",
		Short: "Check an employee's balances against the audit logs",
		Long: `Check that every skill confidence lies in [0, 100], that each
applied contribution has exactly one confidence log entry, that each
awarded contribution has exactly one award log entry and that the
points balance equals the sum of the awards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := Verify(cmd.Context(), rootOpts.client(), args[0])
			if err != nil {
				return requestFailed("verify", err)
			}
			err = rootOpts.printer(cmd).Print(r.OK, r, func(w io.Writer) {
				fmt.Fprintf(w, "verify %s: %s\n", r.EmployeeID, status(r.OK))
				for _, c := range r.Checks {
					fmt.Fprintf(w, "  [%s] %s: %s\n", status(c.OK), c.Name, c.Detail)
				}
			})
			if err != nil {
				return err
			}
			if !r.OK {
				return NewExitError(ExitFailure, "verification failed for "+r.EmployeeID)
			}
			return nil
		},
	}
}
