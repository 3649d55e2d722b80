package scoring_test

import (
	"testing"

	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConfidence(t *testing.T) {
	Convey("Given the default scorer", t, func() {
		s := scoring.New()

		Convey("A Lead contribution of impact 10 on a skill at 50 adds 11", func() {
			step := s.Confidence(50, 10, model.RoleLead, 0, 0)
			So(step.RoleMultiplier, ShouldEqual, 1.1)
			So(step.DiminishingFactor, ShouldEqual, 1)
			So(step.RawIncrement, ShouldEqual, 11)
			So(step.NewConfidence, ShouldEqual, 61)
			So(step.Increment, ShouldEqual, 11)
			So(step.Truncated, ShouldBeFalse)
		})

		Convey("A second one in the same month is diminished then truncated to the headroom", func() {
			step := s.Confidence(61, 10, model.RoleLead, 1, 11)
			So(step.RawIncrement, ShouldEqual, 8.8)
			So(step.Headroom, ShouldEqual, 4)
			So(step.Increment, ShouldEqual, 4)
			So(step.NewConfidence, ShouldEqual, 65)
			So(step.Truncated, ShouldBeTrue)
		})

		Convey("Diminishing compounds per prior application", func() {
			step := s.Confidence(10, 10, model.RoleContributor, 2, 0)
			So(step.RawIncrement, ShouldEqual, 6.4)
		})

		Convey("No headroom means the cap is reached and nothing moves", func() {
			step := s.Confidence(65, 10, model.RoleArchitect, 2, 15)
			So(step.CapReached, ShouldBeTrue)
			So(step.Increment, ShouldEqual, 0)
			So(step.NewConfidence, ShouldEqual, 65)
		})

		Convey("Confidence is clamped at 100", func() {
			step := s.Confidence(95, 10, model.RoleLead, 0, 0)
			So(step.NewConfidence, ShouldEqual, 100)
			So(step.Increment, ShouldEqual, 5)

			step = s.Confidence(100, 10, model.RoleLead, 0, 0)
			So(step.Increment, ShouldEqual, 0)
		})

		Convey("Unknown roles weigh 1.0", func() {
			So(s.ConfidenceRoleMultiplier(model.Role("Intern")), ShouldEqual, 1.0)
			So(s.PointsRoleMultiplier(model.Role("Intern")), ShouldEqual, 1.0)
		})

		Convey("A lower monthly cap is honored", func() {
			low := scoring.New(scoring.WithMonthlyCaps(5, 0))
			step := low.Confidence(50, 10, model.RoleLead, 0, 0)
			So(step.Increment, ShouldEqual, 5)
			So(low.Tables().MonthlyPointsCap, ShouldEqual, 200)
		})
	})
}

func TestPoints(t *testing.T) {
	Convey("Given the default scorer", t, func() {
		s := scoring.New()

		Convey("The confidence multiplier is a step function", func() {
			So(s.ConfidenceMultiplier(-1), ShouldEqual, 1.0)
			So(s.ConfidenceMultiplier(0), ShouldEqual, 1.0)
			So(s.ConfidenceMultiplier(4.99), ShouldEqual, 1.0)
			So(s.ConfidenceMultiplier(5), ShouldAlmostEqual, 1.1, 1e-9)
			So(s.ConfidenceMultiplier(11), ShouldEqual, 2.0)
		})

		Convey("Points combine level, role and delta", func() {
			b := s.Points(model.LevelModerate, model.RoleLead, 11, "React")
			So(b.BasePoints, ShouldEqual, 25)
			So(b.ConfidenceMultiplier, ShouldEqual, 2.0)
			So(b.Points, ShouldEqual, 65)

			So(s.Points(model.LevelSignificant, model.RoleArchitect, 6, "Go").Points, ShouldEqual, 94)
			So(s.Points(model.LevelSignificant, model.RoleArchitect, 10, "Go").Points, ShouldEqual, 143)
			So(s.Points(model.LevelMinor, model.RoleAssistant, 0, "Go").Points, ShouldEqual, 7)
			So(s.Points(model.Level("Epic"), model.RoleContributor, 0, "Go").BasePoints, ShouldEqual, 25)
		})

		Convey("Rarity scales before the bounds apply", func() {
			r := scoring.New(scoring.WithSkillRarity(map[string]float64{"COBOL": 1.5, "HTML": 0.4, "Bad": -1}))
			So(r.Points(model.LevelSignificant, model.RoleArchitect, 10, "COBOL").Points, ShouldEqual, 150)
			So(r.Points(model.LevelMinor, model.RoleContributor, 0, "HTML").Points, ShouldEqual, 5)
			So(r.Rarity("Bad"), ShouldEqual, 1.0)
		})

		Convey("The monthly cap truncates or refuses", func() {
			p, ok := s.CapPoints(30, 100)
			So(ok, ShouldBeTrue)
			So(p, ShouldEqual, 30)

			p, ok = s.CapPoints(65, 150)
			So(ok, ShouldBeTrue)
			So(p, ShouldEqual, 50)

			_, ok = s.CapPoints(65, 196)
			So(ok, ShouldBeFalse)

			_, ok = s.CapPoints(10, 200)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSuggestionsAndBaseline(t *testing.T) {
	Convey("Given the default scorer", t, func() {
		s := scoring.New()

		Convey("Suggested impact follows level and role and is capped at 20", func() {
			So(s.SuggestedImpact(model.LevelModerate, model.RoleContributor), ShouldEqual, 5)
			So(s.SuggestedImpact(model.LevelModerate, model.RoleLead), ShouldEqual, 7.5)
			So(s.SuggestedImpact(model.LevelMinor, model.RoleAssistant), ShouldEqual, 1)
			So(s.SuggestedImpact(model.LevelSignificant, model.RoleArchitect), ShouldEqual, 20)
		})

		Convey("Baseline adds five per full year up to twenty", func() {
			So(s.Baseline(0), ShouldEqual, 40)
			So(s.Baseline(-3), ShouldEqual, 40)
			So(s.Baseline(2), ShouldEqual, 50)
			So(s.Baseline(2.5), ShouldEqual, 52)
			So(s.Baseline(12), ShouldEqual, 60)
		})

		Convey("Custom tables replace the defaults", func() {
			tables := scoring.V1()
			tables.Version = "test"
			tables.BaselineBase = 80
			c := scoring.New(scoring.WithTables(tables))
			So(c.Tables().Version, ShouldEqual, "test")
			So(c.Baseline(10), ShouldEqual, 70)
		})

		Convey("Round2 rounds to cents", func() {
			So(scoring.Round2(1.234), ShouldEqual, 1.23)
			So(scoring.Round2(8.800000000000001), ShouldEqual, 8.8)
		})
	})
}
