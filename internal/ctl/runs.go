package ctl

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/helix/internal/domain/model"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <confidence|points|pipeline> [employee-id|all]",
		Short: "Run a pipeline stage for one employee or everyone",
		Long: `Run a pipeline stage. Without an employee id the run covers all
employees. The command exits 1 when the run reports failures.`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"confidence", "points", "pipeline"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := model.AllEmployees
			if len(args) == 2 {
				target = args[1]
			}
			res, err := rootOpts.client().Run(cmd.Context(), args[0], target)
			if err != nil {
				return requestFailed("run "+args[0], err)
			}
			var data any
			switch {
			case res.Pipeline != nil:
				data = res.Pipeline
			case res.Confidence != nil:
				data = res.Confidence
			default:
				data = res.Points
			}
			err = rootOpts.printer(cmd).Print(res.Success(), data, func(w io.Writer) {
				writeRun(w, res)
			})
			if err != nil {
				return err
			}
			if !res.Success() {
				return NewExitError(ExitFailure, fmt.Sprintf("%s run reported failures", res.Stage))
			}
			return nil
		},
	}
}

func writeRun(w io.Writer, res *RunResult) {
	switch {
	case res.Pipeline != nil:
		p := res.Pipeline
		fmt.Fprintf(w, "pipeline run for %s: %s\n", p.EmployeeID, status(p.Success))
		writeConfidenceRun(w, &p.Confidence)
		writePointsRun(w, &p.Points)
	case res.Confidence != nil:
		writeConfidenceRun(w, res.Confidence)
	case res.Points != nil:
		writePointsRun(w, res.Points)
	}
}

func writeConfidenceRun(w io.Writer, r *model.ConfidenceRun) {
	fmt.Fprintf(w, "confidence run for %s: %s\n", r.EmployeeID, status(r.Success))
	for _, u := range r.Updates {
		fmt.Fprintf(w, "  %s %s/%s %.2f -> %.2f (+%.2f)\n",
			u.ContributionID, u.EmployeeID, u.Skill, u.OldConfidence, u.NewConfidence, u.Increment)
	}
	writeItems(w, "skip", r.Skipped)
	writeItems(w, "error", r.Errors)
	if r.Error != "" {
		fmt.Fprintf(w, "  failure: %s\n", r.Error)
	}
	fmt.Fprintf(w, "applied %d, skipped %d, errors %d\n", len(r.AppliedIDs), len(r.Skipped), len(r.Errors))
}

func writePointsRun(w io.Writer, r *model.PointsRun) {
	fmt.Fprintf(w, "points run for %s: %s\n", r.EmployeeID, status(r.Success))
	for _, a := range r.Awards {
		line := fmt.Sprintf("  %s %s/%s +%d (total %d)", a.ContributionID, a.EmployeeID, a.Skill, a.Points, a.TotalAfter)
		if a.Truncated {
			line += fmt.Sprintf(" capped from %d", a.Computed)
		}
		fmt.Fprintln(w, line)
	}
	writeItems(w, "skip", r.Skipped)
	writeItems(w, "error", r.Errors)
	if r.Error != "" {
		fmt.Fprintf(w, "  failure: %s\n", r.Error)
	}
	fmt.Fprintf(w, "awarded %d, %d points, skipped %d, errors %d\n",
		len(r.AwardedIDs), r.TotalPointsAwarded, len(r.Skipped), len(r.Errors))
}

func writeItems(w io.Writer, label string, items []model.ItemError) {
	for _, it := range items {
		fmt.Fprintf(w, "  %s %s %s/%s %s: %s\n", label, it.ContributionID, it.EmployeeID, it.Skill, it.Kind, it.Message)
	}
}
