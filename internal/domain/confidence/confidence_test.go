package confidence_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/confidence"
	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/internal/domain/review"
)

var may = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	ctx     context.Context
	store   *repository.MemoryStore
	clock   *clock
	review  *review.Service
	updater *confidence.Updater
}

func newFixture() *fixture {
	f := &fixture{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(),
		clock: &clock{t: may},
	}
	n := 0
	f.review = review.New(f.store,
		review.WithClock(f.clock.now),
		review.WithIDGenerator(func() string { n++; return fmt.Sprintf("c%02d", n) }),
	)
	f.updater = confidence.New(f.store, confidence.WithClock(f.clock.now))
	return f
}

func (f *fixture) seed(employee, skill string, value float64) {
	_, err := f.store.SeedSkills(f.ctx, employee, map[string]model.SkillEntry{
		skill: {Confidence: value, Source: model.SourceResume, Status: model.SkillBaseline},
	}, f.clock.now())
	So(err, ShouldBeNil)
}

func (f *fixture) validated(employee, skill, role string, impact float64) string {
	c, err := f.review.Submit(f.ctx, review.SubmitInput{
		EmployeeID: employee, ProjectID: "p1", SkillUsed: skill,
		Role: role, Level: "Moderate", ConfidenceImpact: impact,
	})
	So(err, ShouldBeNil)
	_, err = f.review.Validate(f.ctx, c.ID, "mgr", "")
	So(err, ShouldBeNil)
	return c.ID
}

func (f *fixture) confidence(employee, skill string) float64 {
	rec, err := f.store.GetSkillConfidence(f.ctx, employee)
	So(err, ShouldBeNil)
	v, _ := rec.Confidence(skill)
	return v
}

func TestProcessEmployee(t *testing.T) {
	Convey("Given an employee at 50 React confidence", t, func() {
		f := newFixture()
		f.seed("E", "React", 50)

		Convey("One Lead contribution of impact 10 adds 11", func() {
			id := f.validated("E", "React", "Lead", 10)
			run := f.updater.ProcessEmployee(f.ctx, "E")
			So(run.Success, ShouldBeTrue)
			So(run.AppliedIDs, ShouldResemble, []string{id})
			So(run.Updates[0].Increment, ShouldEqual, 11)
			So(f.confidence("E", "React"), ShouldEqual, 61)

			c, _ := f.store.GetContribution(f.ctx, id)
			So(c.AppliedToConfidence, ShouldBeTrue)

			Convey("Running again changes nothing", func() {
				again := f.updater.ProcessEmployee(f.ctx, "E")
				So(again.Success, ShouldBeTrue)
				So(again.Updates, ShouldBeEmpty)
				So(again.Errors, ShouldBeEmpty)
				So(f.confidence("E", "React"), ShouldEqual, 61)
			})
		})

		Convey("Two in one batch are diminished and capped at 15", func() {
			first := f.validated("E", "React", "Lead", 10)
			second := f.validated("E", "React", "Lead", 10)
			run := f.updater.ProcessEmployee(f.ctx, "E")
			So(run.Success, ShouldBeTrue)
			So(run.AppliedIDs, ShouldResemble, []string{first, second})
			So(run.Updates[0].Increment, ShouldEqual, 11)
			So(run.Updates[1].RawIncrement, ShouldEqual, 8.8)
			So(run.Updates[1].Increment, ShouldEqual, 4)
			So(run.Updates[1].Truncated, ShouldBeTrue)
			So(f.confidence("E", "React"), ShouldEqual, 65)

			usage, err := f.store.GetPeriodUsage(f.ctx, "E", "React", "2026-05")
			So(err, ShouldBeNil)
			So(usage.AppliedCount, ShouldEqual, 2)
			So(usage.ConfidenceGain, ShouldEqual, 15)

			Convey("Later runs in the same month skip on the cap", func() {
				third := f.validated("E", "React", "Lead", 10)
				run := f.updater.ProcessEmployee(f.ctx, "E")
				So(run.Success, ShouldBeTrue)
				So(run.Updates, ShouldBeEmpty)
				So(len(run.Skipped), ShouldEqual, 1)
				So(run.Skipped[0].ContributionID, ShouldEqual, third)
				So(run.Skipped[0].Kind, ShouldEqual, "cap_reached")

				c, _ := f.store.GetContribution(f.ctx, third)
				So(c.AppliedToConfidence, ShouldBeFalse)

				Convey("and apply once the month turns", func() {
					f.clock.t = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
					run := f.updater.ProcessEmployee(f.ctx, "E")
					So(run.AppliedIDs, ShouldResemble, []string{third})
					So(run.Updates[0].DiminishingFactor, ShouldEqual, 1)
					So(f.confidence("E", "React"), ShouldEqual, 76)
				})
			})
		})

		Convey("Skills are capped independently", func() {
			f.validated("E", "React", "Architect", 20)
			f.validated("E", "Go", "Assistant", 5)
			run := f.updater.ProcessEmployee(f.ctx, "E")
			So(len(run.Updates), ShouldEqual, 2)
			So(f.confidence("E", "React"), ShouldEqual, 65)
			So(f.confidence("E", "Go"), ShouldEqual, 4)
		})

		Convey("A zero impact is skipped and stays unapplied", func() {
			id := f.validated("E", "React", "Lead", 0)
			run := f.updater.ProcessEmployee(f.ctx, "E")
			So(run.Success, ShouldBeTrue)
			So(len(run.Skipped), ShouldEqual, 1)
			So(run.Skipped[0].Kind, ShouldEqual, "no_increment")
			c, _ := f.store.GetContribution(f.ctx, id)
			So(c.AppliedToConfidence, ShouldBeFalse)
		})

		Convey("Confidence never passes 100", func() {
			f.seed("F", "Go", 95)
			f.validated("F", "Go", "Architect", 10)
			run := f.updater.ProcessEmployee(f.ctx, "F")
			So(run.Updates[0].Increment, ShouldEqual, 5)
			So(f.confidence("F", "Go"), ShouldEqual, 100)
		})

		Convey("Pending and rejected work is ignored", func() {
			_, err := f.review.Submit(f.ctx, review.SubmitInput{EmployeeID: "E", ProjectID: "p", SkillUsed: "React", ConfidenceImpact: 10})
			So(err, ShouldBeNil)
			run := f.updater.ProcessEmployee(f.ctx, "E")
			So(run.Updates, ShouldBeEmpty)
		})

		Convey("Preview plans without writing", func() {
			id := f.validated("E", "React", "Lead", 10)
			plan := f.updater.Preview(f.ctx, "E")
			So(plan.AppliedIDs, ShouldResemble, []string{id})
			So(f.confidence("E", "React"), ShouldEqual, 50)
			c, _ := f.store.GetContribution(f.ctx, id)
			So(c.AppliedToConfidence, ShouldBeFalse)
		})

		Convey("An empty employee id fails the run", func() {
			run := f.updater.ProcessEmployee(f.ctx, " ")
			So(run.Success, ShouldBeFalse)
			So(run.Error, ShouldNotBeEmpty)
		})
	})
}

type flakyStore struct {
	*repository.MemoryStore
	failApply string
	failList  bool
}

func (s *flakyStore) ApplyConfidence(ctx context.Context, e model.ConfidenceLogEntry) (model.ConfidenceLogEntry, error) {
	if e.SourceContributionID == s.failApply {
		return model.ConfidenceLogEntry{}, errors.New("connection reset")
	}
	return s.MemoryStore.ApplyConfidence(ctx, e)
}

func (s *flakyStore) ListContributions(ctx context.Context, f repository.ContributionFilter) ([]model.Contribution, error) {
	if s.failList {
		return nil, errors.New("connection refused")
	}
	return s.MemoryStore.ListContributions(ctx, f)
}

func TestFailures(t *testing.T) {
	Convey("Given a store that fails for one contribution", t, func() {
		f := newFixture()
		flaky := &flakyStore{MemoryStore: f.store}
		updater := confidence.New(flaky, confidence.WithClock(f.clock.now))

		bad := f.validated("E", "Go", "Lead", 10)
		good := f.validated("E", "SQL", "Lead", 10)
		flaky.failApply = bad

		Convey("The batch keeps going and reports the failure", func() {
			run := updater.ProcessEmployee(f.ctx, "E")
			So(run.Success, ShouldBeTrue)
			So(run.AppliedIDs, ShouldResemble, []string{good})
			So(len(run.Errors), ShouldEqual, 1)
			So(run.Errors[0].ContributionID, ShouldEqual, bad)
			So(run.Errors[0].Kind, ShouldEqual, "store_unavailable")
		})

		Convey("A failing lookup fails the whole run", func() {
			flaky.failList = true
			run := updater.ProcessEmployee(f.ctx, "E")
			So(run.Success, ShouldBeFalse)
			So(run.Updates, ShouldBeEmpty)
			So(run.Error, ShouldContainSubstring, "connection refused")

			all := updater.ProcessAll(f.ctx)
			So(all.Success, ShouldBeFalse)
		})
	})
}

func TestProcessAll(t *testing.T) {
	Convey("Given applicable work for two employees", t, func() {
		f := newFixture()
		a := f.validated("A", "Go", "Lead", 10)
		b := f.validated("B", "Go", "Contributor", 10)

		run := f.updater.ProcessAll(f.ctx)
		So(run.Success, ShouldBeTrue)
		So(run.EmployeeID, ShouldEqual, "all")
		So(run.AppliedIDs, ShouldResemble, []string{a, b})
		So(f.confidence("A", "Go"), ShouldEqual, 11)
		So(f.confidence("B", "Go"), ShouldEqual, 10)

		logs, err := f.store.ListConfidenceLogs(f.ctx, "A")
		So(err, ShouldBeNil)
		So(len(logs), ShouldEqual, 1)
		So(logs[0].SourceContributionID, ShouldEqual, a)
		So(logs[0].Period, ShouldEqual, "2026-05")
	})
}

func TestInitializeBaseline(t *testing.T) {
	Convey("Given a resume", t, func() {
		f := newFixture()
		f.seed("E", "Go", 70)

		added, err := f.updater.InitializeBaseline(f.ctx, "E", model.ResumeProfile{
			Skills:          []string{"Go", "React", " ", "SQL"},
			ExperienceYears: 2,
		})
		So(err, ShouldBeNil)
		So(added, ShouldHaveLength, 2)
		So(f.confidence("E", "React"), ShouldEqual, 50)
		So(f.confidence("E", "Go"), ShouldEqual, 70)

		rec, _ := f.store.GetSkillConfidence(f.ctx, "E")
		So(rec.Skills["SQL"].Source, ShouldEqual, model.SourceResume)
		So(rec.Skills["SQL"].Status, ShouldEqual, model.SkillBaseline)

		_, err = f.updater.InitializeBaseline(f.ctx, "", model.ResumeProfile{Skills: []string{"Go"}})
		So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
	})
}

func TestConcurrentRunsApplyOnce(t *testing.T) {
	Convey("Given one validated contribution and several independent updaters", t, func() {
		f := newFixture()
		f.seed("E", "React", 50)
		id := f.validated("E", "React", "Lead", 10)

		fixed := func() time.Time { return may }
		const runners = 8
		results := make([]model.ConfidenceRun, runners)
		var wg sync.WaitGroup
		for i := 0; i < runners; i++ {
			u := confidence.New(f.store, confidence.WithClock(fixed))
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = u.ProcessEmployee(context.Background(), "E")
			}(i)
		}
		wg.Wait()

		Convey("Exactly one run applies it", func() {
			applied := 0
			for _, r := range results {
				applied += len(r.AppliedIDs)
			}
			So(applied, ShouldEqual, 1)
			So(f.confidence("E", "React"), ShouldEqual, 61.0)

			logs, err := f.store.ListConfidenceLogs(f.ctx, "E")
			So(err, ShouldBeNil)
			So(logs, ShouldHaveLength, 1)
			So(logs[0].SourceContributionID, ShouldEqual, id)
		})
	})
}
