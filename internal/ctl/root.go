// Package ctl implements helixctl, the operator CLI for the award pipeline.
package ctl

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	URL     string
	Format  string // "json" | "text"
	Timeout time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

const defaultURL = "http://localhost:9080"

// NewRootCommand creates the root command for helixctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "helixctl",
		Short: "Operate the Helix award pipeline",
		Long: `helixctl talks to a running helix service: submit and review
contributions, trigger confidence and points runs, and check an
employee's balances against the audit logs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Timeout <= 0 {
				return NewExitError(ExitCommandError, "timeout must be positive")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", defaultURL, "helix service base URL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")

	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRejectCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}

func (o *RootOptions) client() *Client {
	return NewClient(o.URL, o.Timeout)
}

func (o *RootOptions) printer(cmd *cobra.Command) *Printer {
	return &Printer{Format: o.Format, Writer: cmd.OutOrStdout()}
}
