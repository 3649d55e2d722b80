package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/helix/internal/adapters/mq/queue"
	"github.com/okian/helix/internal/domain/dedupe"
	"github.com/okian/helix/internal/domain/model"
)

type recordingRunner struct {
	mu      sync.Mutex
	targets []string
	fail    map[string]bool
	ran     chan string
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{fail: map[string]bool{}, ran: make(chan string, 64)}
}

func (r *recordingRunner) RunPipeline(_ context.Context, employeeID string) model.PipelineRun {
	r.mu.Lock()
	r.targets = append(r.targets, employeeID)
	failed := r.fail[employeeID]
	r.mu.Unlock()
	r.ran <- employeeID
	return model.PipelineRun{Success: !failed, EmployeeID: employeeID}
}

func (r *recordingRunner) wait(t *testing.T) string {
	t.Helper()
	select {
	case id := <-r.ran:
		return id
	case <-time.After(2 * time.Second):
		return ""
	}
}

func TestSweeper(t *testing.T) {
	Convey("Given a sweeper over a trigger queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		pending := dedupe.NewInMemoryDeduper()
		runner := newRecordingRunner()
		s := NewSweeper(q, runner, WithPending(pending), WithName("test-sweeper"))
		go s.Run(ctx)

		Convey("A trigger runs the pipeline for its employee and releases it", func() {
			So(pending.SeenAndRecord(ctx, "e1"), ShouldBeFalse)
			So(q.Enqueue(ctx, queue.Trigger{EmployeeID: "e1", Reason: "validated"}), ShouldBeNil)

			So(runner.wait(t), ShouldEqual, "e1")
			So(pending.SeenAndRecord(ctx, "e1"), ShouldBeFalse)
		})

		Convey("Failed runs are counted", func() {
			runner.mu.Lock()
			runner.fail["bad"] = true
			runner.mu.Unlock()
			So(q.Enqueue(ctx, queue.Trigger{EmployeeID: "bad"}), ShouldBeNil)
			So(q.Enqueue(ctx, queue.Trigger{EmployeeID: "good"}), ShouldBeNil)

			So(runner.wait(t), ShouldEqual, "bad")
			So(runner.wait(t), ShouldEqual, "good")
			So(s.Shutdown(context.Background()), ShouldBeNil)
			So(s.Runs(), ShouldEqual, 2)
			So(s.Failures(), ShouldEqual, 1)
		})

		Convey("Shutdown is idempotent", func() {
			So(s.Shutdown(context.Background()), ShouldBeNil)
			So(s.Shutdown(context.Background()), ShouldBeNil)
		})

		Convey("Closing the queue stops the loop", func() {
			So(q.Close(), ShouldBeNil)
			So(s.Shutdown(context.Background()), ShouldBeNil)
		})
	})

	Convey("Given a scheduled sweeper", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		runner := newRecordingRunner()
		s := NewSweeper(queue.NewInMemoryQueue(), runner, WithInterval(10*time.Millisecond))
		go s.Run(ctx)

		Convey("It sweeps every employee on each tick", func() {
			So(runner.wait(t), ShouldEqual, model.AllEmployees)
			So(s.Shutdown(context.Background()), ShouldBeNil)
		})
	})
}
