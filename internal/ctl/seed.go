package ctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/helix/internal/domain/model"
)

// Fixture is a seed file: resume baselines plus contributions to submit and
// optionally review.
type Fixture struct {
	Baselines     []BaselineFixture     `yaml:"baselines"`
	Contributions []ContributionFixture `yaml:"contributions"`
}

// BaselineFixture seeds one employee's resume skills.
type BaselineFixture struct {
	EmployeeID      string   `yaml:"employee_id"`
	Skills          []string `yaml:"skills"`
	ExperienceYears float64  `yaml:"experience_years"`
}

// ContributionFixture is a contribution with an optional review decision.
type ContributionFixture struct {
	SubmitRequest `yaml:",inline"`
	Validate      *ReviewFixture `yaml:"validate,omitempty"`
	Reject        *ReviewFixture `yaml:"reject,omitempty"`
}

// ReviewFixture is the reviewer's decision for a seeded contribution.
type ReviewFixture struct {
	Reviewer string `yaml:"reviewer"`
	Note     string `yaml:"note,omitempty"`
	Feedback string `yaml:"feedback,omitempty"`
}

// LoadFixture reads and checks a seed file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i := range f.Contributions {
		c := &f.Contributions[i]
		if c.Validate != nil && c.Reject != nil {
			return nil, fmt.Errorf("contribution %d: validate and reject are exclusive", i+1)
		}
	}
	return &f, nil
}

// SeedResult summarizes what a seed run created.
type SeedResult struct {
	Baselines     int                  `json:"baselines"`
	Contributions []model.Contribution `json:"contributions"`
	Validated     int                  `json:"validated"`
	Rejected      int                  `json:"rejected"`
}

// Seed applies f through c, stopping at the first failed request.
func Seed(ctx context.Context, c *Client, f *Fixture) (*SeedResult, error) {
	res := &SeedResult{Contributions: []model.Contribution{}}
	for _, b := range f.Baselines {
		if _, err := c.Baseline(ctx, b.EmployeeID, model.ResumeProfile{
			Skills:          b.Skills,
			ExperienceYears: b.ExperienceYears,
		}); err != nil {
			return res, fmt.Errorf("baseline %s: %w", b.EmployeeID, err)
		}
		res.Baselines++
	}
	for i := range f.Contributions {
		fx := &f.Contributions[i]
		out, err := c.Submit(ctx, fx.SubmitRequest)
		if err != nil {
			return res, fmt.Errorf("contribution %d: %w", i+1, err)
		}
		switch {
		case fx.Validate != nil:
			out, err = c.Validate(ctx, out.ID, fx.Validate.Reviewer, fx.Validate.Note)
			res.Validated++
		case fx.Reject != nil:
			out, err = c.Reject(ctx, out.ID, fx.Reject.Reviewer, fx.Reject.Feedback)
			res.Rejected++
		}
		if err != nil {
			return res, fmt.Errorf("review contribution %d: %w", i+1, err)
		}
		res.Contributions = append(res.Contributions, out)
	}
	return res, nil
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load baselines and contributions from a fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := LoadFixture(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "seed failed", err)
			}
			res, err := Seed(cmd.Context(), rootOpts.client(), f)
			if err != nil {
				return requestFailed("seed", err)
			}
			return rootOpts.printer(cmd).Print(true, res, func(w io.Writer) {
				fmt.Fprintf(w, "seeded %d baselines, %d contributions (%d validated, %d rejected)\n",
					res.Baselines, len(res.Contributions), res.Validated, res.Rejected)
				for i := range res.Contributions {
					fmt.Fprintf(w, "  %s\n", describe(&res.Contributions[i]))
				}
			})
		},
	}
}
