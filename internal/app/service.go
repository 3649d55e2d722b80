// Package service wires the contribution store, the review gate and both
// pipeline stages into the facade used by the HTTP API and the background
// sweeper.
package service

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/okian/helix/internal/adapters/mq/queue"
	"github.com/okian/helix/internal/adapters/mq/worker"
	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/domain/confidence"
	"github.com/okian/helix/internal/domain/dedupe"
	"github.com/okian/helix/internal/domain/errs"
	"github.com/okian/helix/internal/domain/keylock"
	"github.com/okian/helix/internal/domain/model"
	"github.com/okian/helix/internal/domain/points"
	"github.com/okian/helix/internal/domain/review"
	"github.com/okian/helix/internal/domain/scoring"
	"github.com/okian/helix/pkg/logger"
	"github.com/okian/helix/pkg/metrics"
)

const (
	defaultQueueSize  = 1024
	defaultDedupeSize = 10000
	stopTimeout       = 30 * time.Second
)

// Service is the application facade over the award pipeline.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	scorer     *scoring.Scorer
	locks      *keylock.Locker
	review     *review.Service
	confidence *confidence.Updater
	points     *points.Awarder

	// background processing, live between Start and Stop
	pending  dedupe.Deduper
	triggers *queue.InMemoryQueue
	sweeper  *worker.Sweeper
	cancel   context.CancelFunc

	queueSize     int
	dedupeSize    int
	sweepInterval time.Duration
	autoRun       bool
	now           func() time.Time
	newID         func() string

	runsMu sync.Mutex
	last   model.LastRuns

	started bool
	logger  logger.Logger
}

// New builds the service over store. A nil store gets an in-memory one.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		scorer:     scoring.New(),
		locks:      keylock.New(),
		queueSize:  defaultQueueSize,
		dedupeSize: defaultDedupeSize,
		now:        time.Now,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	s.review = review.New(s.store,
		review.WithScorer(s.scorer),
		review.WithClock(s.now),
		review.WithIDGenerator(s.newID),
		review.WithLogger(s.logger.Named("review")),
	)
	// Both stages share one lock set so an employee is never processed by
	// two runs at once, whichever stage they are in.
	s.confidence = confidence.New(s.store,
		confidence.WithScorer(s.scorer),
		confidence.WithClock(s.now),
		confidence.WithLocker(s.locks),
		confidence.WithLogger(s.logger.Named("confidence")),
	)
	s.points = points.New(s.store,
		points.WithScorer(s.scorer),
		points.WithClock(s.now),
		points.WithLocker(s.locks),
		points.WithLogger(s.logger.Named("points")),
	)
	return s
}

// Start launches the background sweeper when auto-run or a sweep interval
// is configured. It is a no-op on a started service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.autoRun || s.sweepInterval > 0 {
		s.pending = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
		s.triggers = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
		s.sweeper = worker.NewSweeper(s.triggers, s,
			worker.WithPending(s.pending),
			worker.WithInterval(s.sweepInterval),
			worker.WithLogger(s.logger),
		)
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.cancel = cancel
		go s.sweeper.Run(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "helix service started",
		logger.Bool("auto_run", s.autoRun),
		logger.Duration("sweep_interval", s.sweepInterval),
		logger.String("tables_version", s.scorer.Tables().Version),
	)
	return nil
}

// Stop drains the sweeper. The store is left open for its owner to close.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping helix service...")

	if s.triggers != nil {
		_ = s.triggers.Close()
	}
	if s.sweeper != nil {
		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		if err := s.sweeper.Shutdown(stopCtx); err != nil {
			s.logger.Warn(ctx, "sweeper did not stop cleanly", logger.Error(err))
		}
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.triggers, s.sweeper, s.pending, s.cancel = nil, nil, nil, nil

	s.started = false
	s.logger.Info(ctx, "helix service stopped")
}

// SubmitContribution records a new Pending contribution.
func (s *Service) SubmitContribution(ctx context.Context, in review.SubmitInput) (model.Contribution, error) {
	return s.review.Submit(ctx, in)
}

// ValidateContribution approves a Pending contribution and, with auto-run
// enabled, schedules a background run for its employee.
func (s *Service) ValidateContribution(ctx context.Context, id, reviewerID, note string) (model.Contribution, error) {
	c, err := s.review.Validate(ctx, id, reviewerID, note)
	if err != nil {
		return c, err
	}
	if s.autoRun {
		s.trigger(ctx, c.EmployeeID, "validated")
	}
	return c, nil
}

// RejectContribution rejects a Pending contribution with feedback.
func (s *Service) RejectContribution(ctx context.Context, id, reviewerID, feedback string) (model.Contribution, error) {
	return s.review.Reject(ctx, id, reviewerID, feedback)
}

// trigger enqueues a background run for employeeID unless one is pending.
func (s *Service) trigger(ctx context.Context, employeeID, reason string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.triggers == nil {
		return
	}
	if s.pending.SeenAndRecord(ctx, employeeID) {
		metrics.RecordQueueCoalesced()
		return
	}
	err := s.triggers.Enqueue(ctx, queue.Trigger{EmployeeID: employeeID, Reason: reason, At: s.now().UTC()})
	if err != nil {
		s.pending.Unrecord(ctx, employeeID)
		s.logger.Warn(ctx, "background run not scheduled",
			logger.String("employee_id", employeeID),
			logger.Error(err),
		)
	}
}

func isAll(target string) bool {
	return strings.TrimSpace(target) == model.AllEmployees
}

// RunConfidenceUpdate applies pending confidence updates for one employee
// or, for "all", every employee.
func (s *Service) RunConfidenceUpdate(ctx context.Context, target string) model.ConfidenceRun {
	var run model.ConfidenceRun
	if isAll(target) {
		run = s.confidence.ProcessAll(ctx)
	} else {
		run = s.confidence.ProcessEmployee(ctx, strings.TrimSpace(target))
	}
	s.runsMu.Lock()
	s.last.Confidence = &run
	s.runsMu.Unlock()
	return run
}

// RunPointsAward awards points for applied contributions of one employee
// or, for "all", every employee.
func (s *Service) RunPointsAward(ctx context.Context, target string) model.PointsRun {
	var run model.PointsRun
	if isAll(target) {
		run = s.points.ProcessAll(ctx)
	} else {
		run = s.points.ProcessEmployee(ctx, strings.TrimSpace(target))
	}
	s.runsMu.Lock()
	s.last.Points = &run
	s.runsMu.Unlock()
	return run
}

// RunPipeline runs the confidence stage and then the points stage. The
// points stage runs even when the first stage reports failure, since its
// items only depend on contributions already applied.
func (s *Service) RunPipeline(ctx context.Context, target string) model.PipelineRun {
	conf := s.RunConfidenceUpdate(ctx, target)
	pts := s.RunPointsAward(ctx, target)
	run := model.PipelineRun{
		Success:    conf.Success && pts.Success,
		EmployeeID: conf.EmployeeID,
		Confidence: conf,
		Points:     pts,
	}
	s.runsMu.Lock()
	s.last.Pipeline = &run
	s.runsMu.Unlock()
	return run
}

// PreviewConfidence computes the confidence updates a run would apply
// without persisting anything.
func (s *Service) PreviewConfidence(ctx context.Context, employeeID string) model.ConfidenceRun {
	return s.confidence.Preview(ctx, employeeID)
}

// LastRuns returns copies of the most recent run results.
func (s *Service) LastRuns() model.LastRuns {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	return s.last
}

// InitializeBaseline seeds resume-derived confidence for new skills.
func (s *Service) InitializeBaseline(ctx context.Context, employeeID string, profile model.ResumeProfile) ([]string, error) {
	return s.confidence.InitializeBaseline(ctx, employeeID, profile)
}

// GetContribution returns one contribution.
func (s *Service) GetContribution(ctx context.Context, id string) (model.Contribution, error) {
	return s.review.Get(ctx, id)
}

// ListContributions returns an employee's contributions, optionally by status.
func (s *Service) ListContributions(ctx context.Context, employeeID string, status model.Status) ([]model.Contribution, error) {
	return s.review.ListForEmployee(ctx, employeeID, status)
}

// ListPending returns the review queue, newest first.
func (s *Service) ListPending(ctx context.Context) ([]model.Contribution, error) {
	return s.review.ListPendingForReview(ctx)
}

// EmployeeSummary counts an employee's contributions.
func (s *Service) EmployeeSummary(ctx context.Context, employeeID string) (model.EmployeeSummary, error) {
	return s.review.EmployeeSummary(ctx, employeeID)
}

// SuggestedImpact proposes a confidence impact for a level and role.
func (s *Service) SuggestedImpact(level, role string) (float64, error) {
	return s.review.SuggestedImpact(level, role)
}

func requireEmployee(op, employeeID string) error {
	if strings.TrimSpace(employeeID) == "" {
		return errs.Newf(op, errs.ErrValidation, "employee id is required")
	}
	return nil
}

// GetSkillConfidence returns the employee's confidence record.
func (s *Service) GetSkillConfidence(ctx context.Context, employeeID string) (model.SkillConfidence, error) {
	const op = "service.GetSkillConfidence"
	if err := requireEmployee(op, employeeID); err != nil {
		return model.SkillConfidence{}, err
	}
	sc, err := s.store.GetSkillConfidence(ctx, employeeID)
	return sc, errs.Wrap(op, err)
}

// GetPoints returns the employee's points balance.
func (s *Service) GetPoints(ctx context.Context, employeeID string) (model.HelixPoints, error) {
	const op = "service.GetPoints"
	if err := requireEmployee(op, employeeID); err != nil {
		return model.HelixPoints{}, err
	}
	hp, err := s.store.GetPoints(ctx, employeeID)
	return hp, errs.Wrap(op, err)
}

// ConfidenceLog returns the employee's confidence audit trail, oldest first.
func (s *Service) ConfidenceLog(ctx context.Context, employeeID string) ([]model.ConfidenceLogEntry, error) {
	const op = "service.ConfidenceLog"
	if err := requireEmployee(op, employeeID); err != nil {
		return nil, err
	}
	out, err := s.store.ListConfidenceLogs(ctx, employeeID)
	return out, errs.Wrap(op, err)
}

// AwardLog returns the employee's award audit trail, oldest first.
func (s *Service) AwardLog(ctx context.Context, employeeID string) ([]model.AwardLogEntry, error) {
	const op = "service.AwardLog"
	if err := requireEmployee(op, employeeID); err != nil {
		return nil, err
	}
	out, err := s.store.ListAwardLogs(ctx, employeeID)
	return out, errs.Wrap(op, err)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return errs.Wrap("service.Ping", s.store.Ping(ctx))
}

// Scorer exposes the active scoring tables.
func (s *Service) Scorer() *scoring.Scorer { return s.scorer }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"auto_run":       s.autoRun,
		"sweep_interval": s.sweepInterval.String(),
		"queue_size":     s.queueSize,
		"dedupe_size":    s.dedupeSize,
		"tables_version": s.scorer.Tables().Version,
		"locked_keys":    s.locks.Len(),
		"goroutines":     runtime.NumGoroutine(),
	}
	if s.triggers != nil {
		stats["queue_length"] = s.triggers.Len()
		stats["pending_employees"] = s.pending.Size()
	}
	if s.sweeper != nil {
		stats["sweeps"] = s.sweeper.Runs()
		stats["sweep_failures"] = s.sweeper.Failures()
	}
	if counter, ok := s.store.(interface{ Count(context.Context) int }); ok {
		stats["contributions"] = counter.Count(context.Background())
	}
	return stats
}
