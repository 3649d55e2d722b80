// Package storetest is the behavioral contract every repository.Store backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/model"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) repository.Store

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func contribution(id, employee, skill string, offset time.Duration) model.Contribution {
	return model.Contribution{
		ID:               id,
		EmployeeID:       employee,
		EmployeeName:     "Ada",
		ProjectID:        "p1",
		ProjectName:      "Apollo",
		SkillUsed:        skill,
		Role:             model.RoleLead,
		Level:            model.LevelModerate,
		ConfidenceImpact: 10,
		Status:           model.StatusPending,
		SubmittedAt:      base.Add(offset),
	}
}

func validated(id, employee, skill string, offset time.Duration) model.Contribution {
	c := contribution(id, employee, skill, offset)
	c.Status = model.StatusValidated
	at := base.Add(offset + time.Minute)
	c.ValidatedAt = &at
	c.ValidatedBy = "mgr"
	return c
}

func logEntry(c model.Contribution, old, inc float64) model.ConfidenceLogEntry {
	return model.ConfidenceLogEntry{
		EmployeeID:           c.EmployeeID,
		Skill:                c.SkillUsed,
		SourceContributionID: c.ID,
		OldConfidence:        old,
		NewConfidence:        old + inc,
		Increment:            inc,
		BaseImpact:           c.ConfidenceImpact,
		RoleMultiplier:       1.1,
		DiminishingFactor:    1,
		ContributionLevel:    c.Level,
		Role:                 c.Role,
		Period:               model.PeriodOf(base),
		TablesVersion:        "v1",
		AppliedAt:            base.Add(time.Hour),
	}
}

func award(c model.Contribution, points int) model.AwardLogEntry {
	return model.AwardLogEntry{
		EmployeeID:           c.EmployeeID,
		Skill:                c.SkillUsed,
		SourceContributionID: c.ID,
		PointsAwarded:        points,
		BasePoints:           25,
		RoleMultiplier:       1.3,
		ConfidenceMultiplier: 2,
		RarityMultiplier:     1,
		ConfidenceDelta:      11,
		ContributionLevel:    c.Level,
		Role:                 c.Role,
		Period:               model.PeriodOf(base),
		TablesVersion:        "v1",
		AwardedAt:            base.Add(2 * time.Hour),
	}
}

// Run executes the full contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("ContributionLifecycle", func(t *testing.T) { testContributionLifecycle(t, newStore(t)) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, newStore(t)) })
	t.Run("ApplyConfidence", func(t *testing.T) { testApplyConfidence(t, newStore(t)) })
	t.Run("SeedSkills", func(t *testing.T) { testSeedSkills(t, newStore(t)) })
	t.Run("AwardPoints", func(t *testing.T) { testAwardPoints(t, newStore(t)) })
	t.Run("EmptyReads", func(t *testing.T) { testEmptyReads(t, newStore(t)) })
}

func testContributionLifecycle(t *testing.T, s repository.Store) {
	ctx := context.Background()
	c := contribution("c1", "e1", "React", 0)
	require.NoError(t, s.CreateContribution(ctx, c))
	require.ErrorIs(t, s.CreateContribution(ctx, c), repository.ErrConflict)

	got, err := s.GetContribution(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "React", got.SkillUsed)
	assert.Equal(t, model.RoleLead, got.Role)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.True(t, got.SubmittedAt.Equal(c.SubmittedAt))
	assert.Nil(t, got.ValidatedAt)

	_, err = s.GetContribution(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	at := base.Add(time.Hour)
	reviewed, err := s.ReviewContribution(ctx, repository.Review{
		ContributionID: "c1",
		Status:         model.StatusRejected,
		ReviewerID:     "mgr",
		At:             at,
		Feedback:       &model.Feedback{Message: "needs evidence", CreatedBy: "mgr", CreatedAt: at},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, reviewed.Status)
	require.NotNil(t, reviewed.RejectionFeedback)
	assert.Equal(t, "needs evidence", reviewed.RejectionFeedback.Message)
	require.NotNil(t, reviewed.ValidatedAt)
	assert.True(t, reviewed.ValidatedAt.Equal(at))

	_, err = s.ReviewContribution(ctx, repository.Review{ContributionID: "c1", Status: model.StatusValidated, ReviewerID: "other", At: at})
	require.ErrorIs(t, err, repository.ErrConflict)

	again, err := s.GetContribution(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, again.Status)
	assert.Equal(t, "mgr", again.ValidatedBy)

	_, err = s.ReviewContribution(ctx, repository.Review{ContributionID: "nope", Status: model.StatusValidated, At: at})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func testListFilters(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateContribution(ctx, contribution("b", "e1", "Go", 2*time.Minute)))
	require.NoError(t, s.CreateContribution(ctx, contribution("a", "e1", "Go", 2*time.Minute)))
	require.NoError(t, s.CreateContribution(ctx, contribution("z", "e1", "Go", time.Minute)))
	require.NoError(t, s.CreateContribution(ctx, validated("v", "e2", "Go", 0)))

	all, err := s.ListContributions(ctx, repository.ContributionFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"v", "z", "a", "b"}, ids)

	e1, err := s.ListContributions(ctx, repository.ContributionFilter{EmployeeID: "e1", Status: model.StatusPending})
	require.NoError(t, err)
	assert.Len(t, e1, 3)

	no := false
	ready, err := s.ListContributions(ctx, repository.ContributionFilter{Status: model.StatusValidated, Applied: &no})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "v", ready[0].ID)

	yes := true
	none, err := s.ListContributions(ctx, repository.ContributionFilter{Applied: &yes})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testApplyConfidence(t *testing.T, s repository.Store) {
	ctx := context.Background()
	c := validated("c1", "e1", "React", 0)
	require.NoError(t, s.CreateContribution(ctx, c))
	pending := contribution("c2", "e1", "React", time.Minute)
	require.NoError(t, s.CreateContribution(ctx, pending))

	_, err := s.SeedSkills(ctx, "e1", map[string]model.SkillEntry{
		"React": {Confidence: 50, Source: model.SourceResume, Status: model.SkillBaseline},
	}, base)
	require.NoError(t, err)

	_, err = s.ApplyConfidence(ctx, logEntry(c, 49, 11))
	require.ErrorIs(t, err, repository.ErrConflict, "stale old confidence must be refused")

	_, err = s.ApplyConfidence(ctx, logEntry(pending, 50, 11))
	require.ErrorIs(t, err, repository.ErrConflict, "pending contribution must be refused")

	saved, err := s.ApplyConfidence(ctx, logEntry(c, 50, 11))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	_, err = s.ApplyConfidence(ctx, logEntry(c, 61, 11))
	require.ErrorIs(t, err, repository.ErrConflict, "second apply must be refused")

	got, err := s.GetContribution(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.AppliedToConfidence)
	assert.False(t, got.PointsAwarded)

	sc, err := s.GetSkillConfidence(ctx, "e1")
	require.NoError(t, err)
	entry := sc.Skills["React"]
	assert.InDelta(t, 61, entry.Confidence, 1e-9)
	assert.Equal(t, model.SourceContribution, entry.Source)
	assert.Equal(t, model.SkillValidated, entry.Status)
	require.Len(t, entry.History, 1)
	assert.Equal(t, "c1", entry.History[0].SourceContributionID)
	assert.InDelta(t, 11, entry.History[0].Increment, 1e-9)

	logged, err := s.FindConfidenceLog(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, logged.ID)
	assert.InDelta(t, 50, logged.OldConfidence, 1e-9)

	_, err = s.FindConfidenceLog(ctx, "c2")
	require.ErrorIs(t, err, repository.ErrNotFound)

	u, err := s.GetPeriodUsage(ctx, "e1", "React", model.PeriodOf(base))
	require.NoError(t, err)
	assert.InDelta(t, 11, u.ConfidenceGain, 1e-9)
	assert.Equal(t, 1, u.AppliedCount)
	assert.Equal(t, 0, u.PointsAwarded)

	logs, err := s.ListConfidenceLogs(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	// A skill without a baseline starts from zero.
	fresh := validated("c3", "e1", "Rust", 2*time.Minute)
	require.NoError(t, s.CreateContribution(ctx, fresh))
	_, err = s.ApplyConfidence(ctx, logEntry(fresh, 0, 8))
	require.NoError(t, err)
	sc, err = s.GetSkillConfidence(ctx, "e1")
	require.NoError(t, err)
	assert.InDelta(t, 8, sc.Skills["Rust"].Confidence, 1e-9)
}

func testSeedSkills(t *testing.T, s repository.Store) {
	ctx := context.Background()
	added, err := s.SeedSkills(ctx, "e1", map[string]model.SkillEntry{
		"Go":     {Confidence: 50, Source: model.SourceResume, Status: model.SkillBaseline},
		"Python": {Confidence: 50, Source: model.SourceResume, Status: model.SkillBaseline},
	}, base)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Go", "Python"}, added)

	added, err = s.SeedSkills(ctx, "e1", map[string]model.SkillEntry{
		"Go":  {Confidence: 70, Source: model.SourceResume, Status: model.SkillBaseline},
		"SQL": {Confidence: 45, Source: model.SourceResume, Status: model.SkillBaseline},
	}, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"SQL"}, added)

	sc, err := s.GetSkillConfidence(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, sc.Skills, 3)
	assert.InDelta(t, 50, sc.Skills["Go"].Confidence, 1e-9, "existing skills are never overwritten")
	assert.Equal(t, model.SkillBaseline, sc.Skills["SQL"].Status)
}

func testAwardPoints(t *testing.T, s repository.Store) {
	ctx := context.Background()
	c := validated("c1", "e1", "React", 0)
	require.NoError(t, s.CreateContribution(ctx, c))

	_, err := s.AwardPoints(ctx, award(c, 65), 0)
	require.ErrorIs(t, err, repository.ErrConflict, "award before confidence must be refused")

	_, err = s.ApplyConfidence(ctx, logEntry(c, 0, 11))
	require.NoError(t, err)

	_, err = s.AwardPoints(ctx, award(c, 65), 10)
	require.ErrorIs(t, err, repository.ErrConflict, "stale period usage must be refused")

	saved, err := s.AwardPoints(ctx, award(c, 65), 0)
	require.NoError(t, err)
	assert.Equal(t, 65, saved.TotalPointsAfter)
	assert.NotEmpty(t, saved.ID)

	_, err = s.AwardPoints(ctx, award(c, 65), 65)
	require.ErrorIs(t, err, repository.ErrConflict, "second award must be refused")

	c2 := validated("c2", "e1", "Go", time.Minute)
	require.NoError(t, s.CreateContribution(ctx, c2))
	_, err = s.ApplyConfidence(ctx, logEntry(c2, 0, 4))
	require.NoError(t, err)
	second, err := s.AwardPoints(ctx, award(c2, 33), 0)
	require.NoError(t, err)
	assert.Equal(t, 98, second.TotalPointsAfter)

	p, err := s.GetPoints(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 98, p.TotalPoints)
	assert.Equal(t, map[string]int{"React": 65, "Go": 33}, p.SkillPoints)

	u, err := s.GetPeriodUsage(ctx, "e1", "React", model.PeriodOf(base))
	require.NoError(t, err)
	assert.Equal(t, 65, u.PointsAwarded)

	got, err := s.GetContribution(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StagePointsAwarded, got.Stage())

	logs, err := s.ListAwardLogs(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	sum := 0
	for _, l := range logs {
		sum += l.PointsAwarded
	}
	assert.Equal(t, p.TotalPoints, sum)
}

func testEmptyReads(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	sc, err := s.GetSkillConfidence(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", sc.EmployeeID)
	assert.Empty(t, sc.Skills)

	p, err := s.GetPoints(ctx, "ghost")
	require.NoError(t, err)
	assert.Zero(t, p.TotalPoints)

	u, err := s.GetPeriodUsage(ctx, "ghost", "Go", "2026-05")
	require.NoError(t, err)
	assert.Zero(t, u.AppliedCount)

	logs, err := s.ListConfidenceLogs(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

