// Package scoring holds the pure arithmetic of the pipeline: confidence
// increments, points, caps and the resume baseline.
package scoring

import (
	"math"

	"github.com/okian/helix/internal/domain/model"
)

// TablesVersion is stamped on every audit entry computed with V1.
const TablesVersion = "v1"

// Tables is one named, versioned set of scoring constants.
//
// ConfidenceRole and PointsRole differ on purpose: confidence rewards the
// depth of involvement gently (Architect 1.2), points reward it steeply
// (Architect 1.43). They are kept apart until the product owner decides to
// unify them.
type Tables struct {
	Version string

	ConfidenceRole       map[model.Role]float64
	DiminishingBase      float64
	MonthlyConfidenceCap float64
	MinConfidence        float64
	MaxConfidence        float64

	PointsRole        map[model.Role]float64
	BasePoints        map[model.Level]int
	DefaultBasePoints int
	DeltaThreshold    float64
	DeltaFactor       float64
	MaxDeltaMult      float64
	MinPoints         int
	MaxPoints         int
	MonthlyPointsCap  int

	SuggestedByLevel map[model.Level]float64
	SuggestedRole    map[model.Role]float64
	MaxSuggested     float64

	BaselineBase    int
	BaselinePerYear float64
	BaselineMaxBump int
	BaselineMin     int
	BaselineMax     int
}

// V1 returns the current tables.
func V1() Tables {
	return Tables{
		Version: TablesVersion,

		ConfidenceRole: map[model.Role]float64{
			model.RoleArchitect:   1.2,
			model.RoleLead:        1.1,
			model.RoleContributor: 1.0,
			model.RoleAssistant:   0.8,
		},
		DiminishingBase:      0.8,
		MonthlyConfidenceCap: 15,
		MinConfidence:        0,
		MaxConfidence:        100,

		PointsRole: map[model.Role]float64{
			model.RoleAssistant:   0.7,
			model.RoleContributor: 1.0,
			model.RoleLead:        1.3,
			model.RoleArchitect:   1.43,
		},
		BasePoints: map[model.Level]int{
			model.LevelMinor:       10,
			model.LevelModerate:    25,
			model.LevelSignificant: 50,
		},
		DefaultBasePoints: 25,
		DeltaThreshold:    5.0,
		DeltaFactor:       1.1,
		MaxDeltaMult:      2.0,
		MinPoints:         5,
		MaxPoints:         150,
		MonthlyPointsCap:  200,

		SuggestedByLevel: map[model.Level]float64{
			model.LevelMinor:       2,
			model.LevelModerate:    5,
			model.LevelSignificant: 10,
		},
		SuggestedRole: map[model.Role]float64{
			model.RoleAssistant:   0.5,
			model.RoleContributor: 1.0,
			model.RoleLead:        1.5,
			model.RoleArchitect:   2.0,
		},
		MaxSuggested: 20,

		BaselineBase:    40,
		BaselinePerYear: 5,
		BaselineMaxBump: 20,
		BaselineMin:     30,
		BaselineMax:     70,
	}
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithTables replaces the scoring tables.
func WithTables(t Tables) Option {
	return func(s *Scorer) {
		if t.Version != "" {
			s.tables = t
		}
	}
}

// WithMonthlyCaps overrides the per-skill monthly caps. Non-positive values keep the default.
func WithMonthlyCaps(confidence float64, points int) Option {
	return func(s *Scorer) {
		if confidence > 0 {
			s.tables.MonthlyConfidenceCap = confidence
		}
		if points > 0 {
			s.tables.MonthlyPointsCap = points
		}
	}
}

// WithSkillRarity sets per-skill points multipliers. Unknown skills use 1.0.
func WithSkillRarity(rarity map[string]float64) Option {
	return func(s *Scorer) {
		s.rarity = make(map[string]float64, len(rarity))
		for skill, m := range rarity {
			if m > 0 {
				s.rarity[skill] = m
			}
		}
	}
}

// Scorer evaluates the tables. It is immutable after construction and safe
// for concurrent use.
type Scorer struct {
	tables Tables
	rarity map[string]float64
}

// New creates a Scorer over V1 tables.
func New(opts ...Option) *Scorer {
	s := &Scorer{tables: V1(), rarity: map[string]float64{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tables returns the active tables.
func (s *Scorer) Tables() Tables { return s.tables }

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ConfidenceRoleMultiplier returns the confidence-stage multiplier, 1.0 for unknown roles.
func (s *Scorer) ConfidenceRoleMultiplier(r model.Role) float64 {
	if m, ok := s.tables.ConfidenceRole[r]; ok {
		return m
	}
	return 1.0
}

// PointsRoleMultiplier returns the points-stage multiplier, 1.0 for unknown roles.
func (s *Scorer) PointsRoleMultiplier(r model.Role) float64 {
	if m, ok := s.tables.PointsRole[r]; ok {
		return m
	}
	return 1.0
}

// ConfidenceStep is the full breakdown of one confidence application.
type ConfidenceStep struct {
	RoleMultiplier    float64
	DiminishingFactor float64
	RawIncrement      float64
	Headroom          float64
	NewConfidence     float64
	Increment         float64
	Truncated         bool
	CapReached        bool
}

// Confidence computes the effect of one contribution on a skill currently at
// current, given k prior applications and gained points already used this period.
//
// When CapReached is set or Increment is zero, nothing should be persisted.
func (s *Scorer) Confidence(current, impact float64, role model.Role, k int, gained float64) ConfidenceStep {
	step := ConfidenceStep{
		RoleMultiplier:    s.ConfidenceRoleMultiplier(role),
		DiminishingFactor: math.Pow(s.tables.DiminishingBase, float64(k)),
	}
	step.RawIncrement = Round2(impact * step.RoleMultiplier * step.DiminishingFactor)
	step.Headroom = Round2(s.tables.MonthlyConfidenceCap - gained)
	if step.Headroom <= 0 {
		step.CapReached = true
		step.NewConfidence = current
		return step
	}

	inc := step.RawIncrement
	if inc > step.Headroom {
		inc = step.Headroom
		step.Truncated = true
	}
	step.NewConfidence = Round2(clamp(current+inc, s.tables.MinConfidence, s.tables.MaxConfidence))
	step.Increment = Round2(step.NewConfidence - current)
	return step
}

// ConfidenceMultiplier is the step function over the confidence delta.
func (s *Scorer) ConfidenceMultiplier(delta float64) float64 {
	if delta >= s.tables.DeltaThreshold {
		return math.Min(delta/s.tables.DeltaThreshold*s.tables.DeltaFactor, s.tables.MaxDeltaMult)
	}
	return 1.0
}

// Rarity returns the points multiplier of skill.
func (s *Scorer) Rarity(skill string) float64 {
	if m, ok := s.rarity[skill]; ok {
		return m
	}
	return 1.0
}

// PointsBreakdown is the full breakdown of one award computation.
type PointsBreakdown struct {
	BasePoints           int
	RoleMultiplier       float64
	ConfidenceMultiplier float64
	RarityMultiplier     float64
	Points               int
}

// Points computes the uncapped award for a contribution that moved
// confidence by delta.
func (s *Scorer) Points(level model.Level, role model.Role, delta float64, skill string) PointsBreakdown {
	base, ok := s.tables.BasePoints[level]
	if !ok {
		base = s.tables.DefaultBasePoints
	}
	b := PointsBreakdown{
		BasePoints:           base,
		RoleMultiplier:       s.PointsRoleMultiplier(role),
		ConfidenceMultiplier: s.ConfidenceMultiplier(delta),
		RarityMultiplier:     s.Rarity(skill),
	}
	raw := int(math.Round(float64(base) * b.RoleMultiplier * b.ConfidenceMultiplier * b.RarityMultiplier))
	b.Points = max(s.tables.MinPoints, min(raw, s.tables.MaxPoints))
	return b
}

// CapPoints fits points under the monthly cap given used points this period.
// It returns the grantable amount and false when nothing may be granted.
func (s *Scorer) CapPoints(points, used int) (int, bool) {
	limit := s.tables.MonthlyPointsCap
	if used >= limit {
		return 0, false
	}
	if used+points > limit {
		remaining := limit - used
		if remaining < s.tables.MinPoints {
			return 0, false
		}
		return remaining, true
	}
	return points, true
}

// SuggestedImpact proposes a confidence impact for a level and role.
func (s *Scorer) SuggestedImpact(level model.Level, role model.Role) float64 {
	base, ok := s.tables.SuggestedByLevel[level]
	if !ok {
		base = s.tables.SuggestedByLevel[model.LevelModerate]
	}
	mult, ok := s.tables.SuggestedRole[role]
	if !ok {
		mult = 1.0
	}
	return math.Min(base*mult, s.tables.MaxSuggested)
}

// Baseline is the resume-derived starting confidence for any listed skill.
func (s *Scorer) Baseline(experienceYears float64) float64 {
	c := s.tables.BaselineBase
	if experienceYears > 0 {
		c += min(int(s.tables.BaselinePerYear*experienceYears), s.tables.BaselineMaxBump)
	}
	return float64(max(s.tables.BaselineMin, min(c, s.tables.BaselineMax)))
}
