package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/helix/internal/app"
	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/internal/domain/review"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newService(opts ...service.Option) *service.Service {
	clk := &stepClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	return service.New(repository.NewMemoryStore(), append([]service.Option{service.WithClock(clk.now)}, opts...)...)
}

func submitAndValidate(ctx context.Context, svc *service.Service, employee, skill string) model.Contribution {
	c, err := svc.SubmitContribution(ctx, review.SubmitInput{
		EmployeeID: employee, ProjectID: "p1", SkillUsed: skill,
		Role: "Lead", Level: "Moderate", ConfidenceImpact: 5,
	})
	So(err, ShouldBeNil)
	c, err = svc.ValidateContribution(ctx, c.ID, "mgr", "nice")
	So(err, ShouldBeNil)
	return c
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without background processing", t, func() {
		svc := newService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("Start and Stop toggle the started flag", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			_, hasQueue := svc.GetStats()["queue_length"]
			So(hasQueue, ShouldBeFalse)

			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Stats report the scoring tables and store size", func() {
			submitAndValidate(ctx, svc, "E", "Go")
			stats := svc.GetStats()
			So(stats["tables_version"], ShouldEqual, "v1")
			So(stats["contributions"], ShouldEqual, 1)
		})

		Convey("A nil store falls back to memory", func() {
			s := service.New(nil)
			So(s.Ping(ctx), ShouldBeNil)
		})
	})
}

func TestService_Pipeline(t *testing.T) {
	Convey("Given a validated contribution", t, func() {
		svc := newService()
		ctx := context.Background()
		c := submitAndValidate(ctx, svc, "E", "Go")

		Convey("A preview changes nothing", func() {
			run := svc.PreviewConfidence(ctx, "E")
			So(run.Success, ShouldBeTrue)
			So(run.Updates, ShouldHaveLength, 1)

			sc, err := svc.GetSkillConfidence(ctx, "E")
			So(err, ShouldBeNil)
			_, ok := sc.Confidence("Go")
			So(ok, ShouldBeFalse)
		})

		Convey("RunPipeline applies confidence and awards points", func() {
			run := svc.RunPipeline(ctx, "E")
			So(run.Success, ShouldBeTrue)
			So(run.EmployeeID, ShouldEqual, "E")
			So(run.Confidence.Updates, ShouldHaveLength, 1)
			So(run.Points.Awards, ShouldHaveLength, 1)

			sc, err := svc.GetSkillConfidence(ctx, "E")
			So(err, ShouldBeNil)
			v, _ := sc.Confidence("Go")
			So(v, ShouldEqual, 5.5)

			hp, err := svc.GetPoints(ctx, "E")
			So(err, ShouldBeNil)
			So(hp.TotalPoints, ShouldEqual, 39)

			clog, err := svc.ConfidenceLog(ctx, "E")
			So(err, ShouldBeNil)
			So(clog, ShouldHaveLength, 1)
			So(clog[0].SourceContributionID, ShouldEqual, c.ID)

			alog, err := svc.AwardLog(ctx, "E")
			So(err, ShouldBeNil)
			So(alog, ShouldHaveLength, 1)
			So(alog[0].PointsAwarded, ShouldEqual, 39)

			Convey("And the last runs are kept", func() {
				last := svc.LastRuns()
				So(last.Pipeline, ShouldNotBeNil)
				So(last.Confidence, ShouldNotBeNil)
				So(last.Points, ShouldNotBeNil)
				So(last.Points.Awards, ShouldHaveLength, 1)
			})

			Convey("And a second run is a no-op", func() {
				again := svc.RunPipeline(ctx, "E")
				So(again.Success, ShouldBeTrue)
				So(again.Confidence.Updates, ShouldBeEmpty)
				So(again.Points.Awards, ShouldBeEmpty)
			})
		})

		Convey("Stages can run separately and for everyone", func() {
			submitAndValidate(ctx, svc, "F", "Rust")
			conf := svc.RunConfidenceUpdate(ctx, model.AllEmployees)
			So(conf.EmployeeID, ShouldEqual, model.AllEmployees)
			So(conf.Updates, ShouldHaveLength, 2)

			pts := svc.RunPointsAward(ctx, model.AllEmployees)
			So(pts.Success, ShouldBeTrue)
			So(pts.Awards, ShouldHaveLength, 2)
		})

		Convey("An empty target fails the run", func() {
			run := svc.RunConfidenceUpdate(ctx, "")
			So(run.Success, ShouldBeFalse)
		})
	})
}

func TestService_Reads(t *testing.T) {
	Convey("Given a service with some contributions", t, func() {
		svc := newService()
		ctx := context.Background()
		submitAndValidate(ctx, svc, "E", "Go")
		pending, err := svc.SubmitContribution(ctx, review.SubmitInput{
			EmployeeID: "E", ProjectID: "p2", SkillUsed: "Go", ConfidenceImpact: 2,
		})
		So(err, ShouldBeNil)

		Convey("The review queue lists pending work", func() {
			out, err := svc.ListPending(ctx)
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 1)
			So(out[0].ID, ShouldEqual, pending.ID)
		})

		Convey("Contributions can be filtered by status", func() {
			out, err := svc.ListContributions(ctx, "E", model.StatusValidated)
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 1)
		})

		Convey("The summary counts by status", func() {
			sum, err := svc.EmployeeSummary(ctx, "E")
			So(err, ShouldBeNil)
			So(sum.Total, ShouldEqual, 2)
			So(sum.Pending, ShouldEqual, 1)
			So(sum.Validated, ShouldEqual, 1)
		})

		Convey("Rejecting without feedback is a validation error", func() {
			_, err := svc.RejectContribution(ctx, pending.ID, "mgr", "")
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("Reviewing twice is a state error", func() {
			_, err := svc.RejectContribution(ctx, pending.ID, "mgr", "needs detail")
			So(err, ShouldBeNil)
			_, err = svc.ValidateContribution(ctx, pending.ID, "mgr", "")
			So(errors.Is(err, errs.ErrState), ShouldBeTrue)
		})

		Convey("Unknown contributions are not found", func() {
			_, err := svc.GetContribution(ctx, "nope")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})

		Convey("Employee reads require an id", func() {
			_, err := svc.GetPoints(ctx, " ")
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			_, err = svc.AwardLog(ctx, "")
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("Suggested impact uses the scoring tables", func() {
			v, err := svc.SuggestedImpact("Significant", "Architect")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 20)
			_, err = svc.SuggestedImpact("Huge", "Lead")
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("A baseline seeds only new skills", func() {
			added, err := svc.InitializeBaseline(ctx, "E", model.ResumeProfile{Skills: []string{"Go", "SQL"}, ExperienceYears: 2})
			So(err, ShouldBeNil)
			So(added, ShouldResemble, []string{"Go", "SQL"})
		})
	})
}

func TestService_AutoRun(t *testing.T) {
	Convey("Given a started service with auto-run", t, func() {
		svc := newService(service.WithAutoRun(true), service.WithQueueSize(8))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Validation schedules a background run", func() {
			submitAndValidate(ctx, svc, "E", "Go")

			deadline := time.Now().Add(3 * time.Second)
			var total int
			for time.Now().Before(deadline) {
				hp, err := svc.GetPoints(ctx, "E")
				So(err, ShouldBeNil)
				if total = hp.TotalPoints; total > 0 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(total, ShouldEqual, 39)
			_, hasQueue := svc.GetStats()["queue_length"]
			So(hasQueue, ShouldBeTrue)
		})
	})
}
