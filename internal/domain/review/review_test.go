package review_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/internal/domain/review"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newService() (*review.Service, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	clock := &fixedClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	n := 0
	return review.New(store,
		review.WithClock(clock.now),
		review.WithIDGenerator(func() string { n++; return fmt.Sprintf("c%d", n) }),
	), store
}

func input() review.SubmitInput {
	return review.SubmitInput{
		EmployeeID:       "e1",
		ProjectID:        "p1",
		SkillUsed:        "React",
		Role:             "Lead",
		Level:            "Moderate",
		ConfidenceImpact: 10,
	}
}

func TestSubmit(t *testing.T) {
	Convey("Given a review service", t, func() {
		svc, store := newService()
		ctx := context.Background()

		Convey("A complete submission is stored as Pending", func() {
			c, err := svc.Submit(ctx, input())
			So(err, ShouldBeNil)
			So(c.ID, ShouldEqual, "c1")
			So(c.Status, ShouldEqual, model.StatusPending)
			So(c.Role, ShouldEqual, model.RoleLead)
			So(c.AppliedToConfidence, ShouldBeFalse)

			stored, err := store.GetContribution(ctx, "c1")
			So(err, ShouldBeNil)
			So(stored.SkillUsed, ShouldEqual, "React")
		})

		Convey("Role, level and impact fall back to defaults", func() {
			in := review.SubmitInput{EmployeeID: "e1", ProjectID: "p1", SkillUsed: "Go"}
			c, err := svc.Submit(ctx, in)
			So(err, ShouldBeNil)
			So(c.Role, ShouldEqual, model.RoleContributor)
			So(c.Level, ShouldEqual, model.LevelModerate)
			So(c.ConfidenceImpact, ShouldEqual, 0)
		})

		Convey("Missing or reserved identifiers are rejected before persisting", func() {
			for _, in := range []review.SubmitInput{
				{ProjectID: "p1", SkillUsed: "Go"},
				{EmployeeID: "e1", SkillUsed: "Go"},
				{EmployeeID: "e1", ProjectID: "p1", SkillUsed: "  "},
				{EmployeeID: "all", ProjectID: "p1", SkillUsed: "Go"},
				{EmployeeID: " all ", ProjectID: "p1", SkillUsed: "Go"},
			} {
				_, err := svc.Submit(ctx, in)
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			}
			So(store.Count(ctx), ShouldEqual, 0)
		})

		Convey("Unknown enums and negative impact are validation errors", func() {
			in := input()
			in.Role = "Intern"
			_, err := svc.Submit(ctx, in)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)

			in = input()
			in.Level = "Huge"
			_, err = svc.Submit(ctx, in)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)

			in = input()
			in.ConfidenceImpact = -1
			_, err = svc.Submit(ctx, in)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestReview(t *testing.T) {
	Convey("Given a Pending contribution", t, func() {
		svc, store := newService()
		ctx := context.Background()
		c, err := svc.Submit(ctx, input())
		So(err, ShouldBeNil)

		Convey("Validating records the reviewer and note", func() {
			v, err := svc.Validate(ctx, c.ID, "mgr", "nice work")
			So(err, ShouldBeNil)
			So(v.Status, ShouldEqual, model.StatusValidated)
			So(v.ValidatedBy, ShouldEqual, "mgr")
			So(v.ManagerNote, ShouldEqual, "nice work")
			So(v.ValidatedAt, ShouldNotBeNil)

			Convey("A second review is a state error and changes nothing", func() {
				_, err := svc.Reject(ctx, c.ID, "other", "too late")
				So(errors.Is(err, errs.ErrState), ShouldBeTrue)
				_, err = svc.Validate(ctx, c.ID, "other", "")
				So(errors.Is(err, errs.ErrState), ShouldBeTrue)

				got, _ := store.GetContribution(ctx, c.ID)
				So(got.Status, ShouldEqual, model.StatusValidated)
				So(got.ValidatedBy, ShouldEqual, "mgr")
				So(got.RejectionFeedback, ShouldBeNil)
			})
		})

		Convey("Rejecting attaches feedback from the reviewer", func() {
			r, err := svc.Reject(ctx, c.ID, "mgr", "needs evidence")
			So(err, ShouldBeNil)
			So(r.Status, ShouldEqual, model.StatusRejected)
			So(r.RejectionFeedback, ShouldNotBeNil)
			So(r.RejectionFeedback.Message, ShouldEqual, "needs evidence")
			So(r.RejectionFeedback.CreatedBy, ShouldEqual, "mgr")
		})

		Convey("Rejecting with empty feedback leaves it Pending", func() {
			_, err := svc.Reject(ctx, c.ID, "mgr", "   ")
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			got, _ := store.GetContribution(ctx, c.ID)
			So(got.Status, ShouldEqual, model.StatusPending)
		})

		Convey("A reviewer is required", func() {
			_, err := svc.Validate(ctx, c.ID, "", "")
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})

		Convey("An unknown contribution is a state error that is also not found", func() {
			_, err := svc.Validate(ctx, "nope", "mgr", "")
			So(errors.Is(err, errs.ErrState), ShouldBeTrue)
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestQueries(t *testing.T) {
	Convey("Given several contributions", t, func() {
		svc, _ := newService()
		ctx := context.Background()
		ids := make([]string, 0, 4)
		for _, skill := range []string{"React", "Go", "React", "SQL"} {
			in := input()
			in.SkillUsed = skill
			c, err := svc.Submit(ctx, in)
			So(err, ShouldBeNil)
			ids = append(ids, c.ID)
		}
		other := input()
		other.EmployeeID = "e2"
		_, err := svc.Submit(ctx, other)
		So(err, ShouldBeNil)

		_, err = svc.Validate(ctx, ids[0], "mgr", "")
		So(err, ShouldBeNil)
		_, err = svc.Reject(ctx, ids[1], "mgr", "not Go")
		So(err, ShouldBeNil)

		Convey("The review queue lists Pending newest first", func() {
			pending, err := svc.ListPendingForReview(ctx)
			So(err, ShouldBeNil)
			So(len(pending), ShouldEqual, 3)
			So(pending[0].EmployeeID, ShouldEqual, "e2")
			So(pending[1].ID, ShouldEqual, ids[3])
			So(pending[2].ID, ShouldEqual, ids[2])
		})

		Convey("Employee listings honour the status filter", func() {
			all, err := svc.ListForEmployee(ctx, "e1", "")
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 4)
			validated, err := svc.ListForEmployee(ctx, "e1", model.StatusValidated)
			So(err, ShouldBeNil)
			So(len(validated), ShouldEqual, 1)
		})

		Convey("The summary counts statuses and skills", func() {
			sum, err := svc.EmployeeSummary(ctx, "e1")
			So(err, ShouldBeNil)
			So(sum.Total, ShouldEqual, 4)
			So(sum.Validated, ShouldEqual, 1)
			So(sum.Rejected, ShouldEqual, 1)
			So(sum.Pending, ShouldEqual, 2)
			So(sum.Skills["React"].Total, ShouldEqual, 2)
			So(sum.Skills["React"].TotalImpact, ShouldEqual, 10)
		})

		Convey("Get reports missing ids as not found", func() {
			_, err := svc.Get(ctx, "missing")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestSuggestedImpact(t *testing.T) {
	Convey("Suggestions follow the level and role tables", t, func() {
		svc, _ := newService()
		v, err := svc.SuggestedImpact("Moderate", "Lead")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 7.5)

		v, err = svc.SuggestedImpact("Significant", "Architect")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 20)

		v, err = svc.SuggestedImpact("", "")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 5)

		_, err = svc.SuggestedImpact("Enormous", "")
		So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
	})
}
