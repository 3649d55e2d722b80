package ctl

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command group.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an employee's confidence or points",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "confidence <employee-id>",
		Short: "Show per-skill confidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := rootOpts.client().Confidence(cmd.Context(), args[0])
			if err != nil {
				return requestFailed("show confidence", err)
			}
			return rootOpts.printer(cmd).Print(true, sc, func(w io.Writer) {
				fmt.Fprintf(w, "%s confidence\n", args[0])
				for _, skill := range slices.Sorted(maps.Keys(sc.Skills)) {
					e := sc.Skills[skill]
					fmt.Fprintf(w, "  %s %.2f %s (%d updates)\n", skill, e.Confidence, e.Status, len(e.History))
				}
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "points <employee-id>",
		Short: "Show the Helix Points balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hp, err := rootOpts.client().Points(cmd.Context(), args[0])
			if err != nil {
				return requestFailed("show points", err)
			}
			return rootOpts.printer(cmd).Print(true, hp, func(w io.Writer) {
				fmt.Fprintf(w, "%s points: %d\n", args[0], hp.TotalPoints)
				for _, skill := range slices.Sorted(maps.Keys(hp.SkillPoints)) {
					fmt.Fprintf(w, "  %s %d\n", skill, hp.SkillPoints[skill])
				}
			})
		},
	})
	return cmd
}
