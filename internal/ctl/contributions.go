package ctl

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/helix/internal/domain/model"
)

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var req SubmitRequest
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a project contribution for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client().Submit(cmd.Context(), req)
			if err != nil {
				return requestFailed("submit", err)
			}
			return rootOpts.printer(cmd).Print(true, c, func(w io.Writer) {
				fmt.Fprintf(w, "submitted %s\n", describe(&c))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.EmployeeID, "employee", "", "employee id (required)")
	f.StringVar(&req.EmployeeName, "employee-name", "", "employee display name")
	f.StringVar(&req.ProjectID, "project", "", "project id (required)")
	f.StringVar(&req.ProjectName, "project-name", "", "project display name")
	f.StringVar(&req.SkillUsed, "skill", "", "skill used (required)")
	f.StringVar(&req.Role, "role", "", "Architect, Lead, Contributor or Assistant")
	f.StringVar(&req.Level, "level", "", "Minor, Moderate or Significant")
	f.Float64Var(&req.ConfidenceImpact, "impact", 0, "claimed confidence impact")
	for _, name := range []string{"employee", "project", "skill"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var reviewer, note string
	cmd := &cobra.Command{
		Use:   "validate <contribution-id>",
		Short: "Approve a pending contribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client().Validate(cmd.Context(), args[0], reviewer, note)
			if err != nil {
				return requestFailed("validate", err)
			}
			return rootOpts.printer(cmd).Print(true, c, func(w io.Writer) {
				fmt.Fprintf(w, "validated %s by %s\n", c.ID, c.ValidatedBy)
			})
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewing manager id (required)")
	cmd.Flags().StringVar(&note, "note", "", "manager note")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(rootOpts *RootOptions) *cobra.Command {
	var reviewer, feedback string
	cmd := &cobra.Command{
		Use:   "reject <contribution-id>",
		Short: "Reject a pending contribution with feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client().Reject(cmd.Context(), args[0], reviewer, feedback)
			if err != nil {
				return requestFailed("reject", err)
			}
			return rootOpts.printer(cmd).Print(true, c, func(w io.Writer) {
				fmt.Fprintf(w, "rejected %s by %s: %s\n", c.ID, c.ValidatedBy, feedback)
			})
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewing manager id (required)")
	cmd.Flags().StringVar(&feedback, "feedback", "", "feedback for the employee (required)")
	_ = cmd.MarkFlagRequired("reviewer")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List contributions waiting for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := rootOpts.client().Pending(cmd.Context())
			if err != nil {
				return requestFailed("pending", err)
			}
			return rootOpts.printer(cmd).Print(true, cs, func(w io.Writer) {
				fmt.Fprintf(w, "%d pending\n", len(cs))
				for i := range cs {
					fmt.Fprintf(w, "  %s\n", describe(&cs[i]))
				}
			})
		},
	}
}

func describe(c *model.Contribution) string {
	return fmt.Sprintf("%s %s/%s %s %s impact %.2f %s",
		c.ID, c.EmployeeID, c.SkillUsed, c.Role, c.Level, c.ConfidenceImpact, c.Status)
}
