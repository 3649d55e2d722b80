package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When the manager is created with options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.contributionsSubmitted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_contributions_submitted_total"], ShouldBeTrue)
			})

			Convey("Then a second manager on the same registry panics on duplicate registration", func() {
				So(func() { NewManager(WithNamespace("test"), WithSubsystem("unit"), WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Counters move when recorded", func() {
			before := testutil.ToFloat64(globalManager.pointsAwarded)
			RecordPointsAwarded(28)
			So(testutil.ToFloat64(globalManager.pointsAwarded)-before, ShouldEqual, 28)

			skips := globalManager.itemSkips.WithLabelValues("points", "cap_reached")
			b := testutil.ToFloat64(skips)
			RecordItemSkip("points", "cap_reached")
			So(testutil.ToFloat64(skips)-b, ShouldEqual, 1)

			runs := globalManager.batchRuns.WithLabelValues("confidence", "failure")
			b = testutil.ToFloat64(runs)
			RecordBatchRun("confidence", false, 12)
			So(testutil.ToFloat64(runs)-b, ShouldEqual, 1)

			b = testutil.ToFloat64(globalManager.workerErrors)
			RecordSweeperRun(errors.New("x"))
			RecordSweeperRun(nil)
			So(testutil.ToFloat64(globalManager.workerErrors)-b, ShouldEqual, 1)
		})

		Convey("Gauges hold the last value", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(64)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
			So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 64)
		})

		Convey("Remaining recorders do not panic", func() {
			So(func() {
				RecordContributionSubmitted()
				RecordReview("validated")
				RecordConfidenceApplied(6.6)
				RecordStoreLatency("apply_confidence", 1.5)
				RecordStoreError("apply_confidence")
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueCoalesced()
				RecordQueueRejected()
				RecordHTTPRequest("/contributions", "POST", "201")
				RecordHTTPRequestDuration("/contributions", "POST", "201", 3)
				UpdateGoroutineCount(10)
				UpdateMemoryUsage(1 << 20)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
