// Package worker runs the award pipeline in the background, either for an
// employee whose contribution was just validated or on a fixed schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/helix/internal/adapters/mq/queue"
	"github.com/okian/helix/internal/domain/dedupe"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/pkg/logger"
	"github.com/okian/helix/pkg/metrics"
)

const defaultRunTimeout = 2 * time.Minute

// ErrRunFailed is reported to metrics when a pipeline run is not successful.
var ErrRunFailed = errors.New("pipeline run failed")

// Runner executes the pipeline for one employee or model.AllEmployees.
type Runner interface {
	RunPipeline(ctx context.Context, employeeID string) model.PipelineRun
}

// Queue is the receive side of the trigger queue.
type Queue interface {
	Dequeue() <-chan queue.Trigger
}

// Sweeper consumes triggers one at a time. Runs never overlap, which keeps
// the background path from competing with itself for employee locks.
type Sweeper struct {
	queue      Queue
	runner     Runner
	pending    dedupe.Deduper
	name       string
	interval   time.Duration
	runTimeout time.Duration

	runs     atomic.Int64
	failures atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewSweeper creates a sweeper reading from q.
func NewSweeper(q Queue, runner Runner, opts ...Option) *Sweeper {
	s := &Sweeper{
		queue:      q,
		runner:     runner,
		name:       "sweeper",
		runTimeout: defaultRunTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named(s.name)
	return s
}

// Run processes triggers until ctx is cancelled, Shutdown is called or the
// queue is closed and drained.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.done)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	triggers := s.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case t, ok := <-triggers:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if s.pending != nil {
				s.pending.Unrecord(ctx, t.EmployeeID)
			}
			s.sweep(ctx, t.EmployeeID, t.Reason)
		case <-tick:
			s.sweep(ctx, model.AllEmployees, "schedule")
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, employeeID, reason string) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	run := s.runner.RunPipeline(ctx, employeeID)
	s.runs.Add(1)

	fields := []logger.Field{
		logger.String("employee_id", employeeID),
		logger.String("reason", reason),
		logger.Int("updates", len(run.Confidence.Updates)),
		logger.Int("awards", len(run.Points.Awards)),
		logger.Duration("took", time.Since(start)),
	}
	if !run.Success {
		s.failures.Add(1)
		err := fmt.Errorf("%w for %s", ErrRunFailed, employeeID)
		metrics.RecordSweeperRun(err)
		s.logger.Warn(ctx, "sweep failed", append(fields, logger.Error(err))...)
		return
	}
	metrics.RecordSweeperRun(nil)
	s.logger.Debug(ctx, "sweep finished", fields...)
}

// Runs returns how many pipeline runs the sweeper has executed.
func (s *Sweeper) Runs() int64 { return s.runs.Load() }

// Failures returns how many runs reported Success=false.
func (s *Sweeper) Failures() int64 { return s.failures.Load() }

// Shutdown stops the loop after the current run and waits for it to exit.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
