package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/infrastructure/cache"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
)

// ---------------------------------------------------------------------------
// Product Sync Job Types
// ---------------------------------------------------------------------------

// ProductSyncJobStatus represents the status of a product sync job
type ProductSyncJobStatus string

const (
	ProductSyncJobStatusPending ProductSyncJobStatus = "PENDING"
	ProductSyncJobStatusRunning ProductSyncJobStatus = "RUNNING"
	ProductSyncJobStatusSuccess ProductSyncJobStatus = "SUCCESS"
	ProductSyncJobStatusFailed  ProductSyncJobStatus = "FAILED"
)

// Trigger sources
const (
	SourceHTTP     = "http"
	SourceInterval = "interval"
)

// ProductSyncJob is one run of the product sync
type ProductSyncJob struct {
	ID          uuid.UUID
	Source      string
	Status      ProductSyncJobStatus
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Report      *integration.SyncReport
}

// NewProductSyncJob creates a new pending job
func NewProductSyncJob(source string) *ProductSyncJob {
	return &ProductSyncJob{
		ID:        uuid.New(),
		Source:    source,
		Status:    ProductSyncJobStatusPending,
		CreatedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *ProductSyncJob) Start() {
	now := time.Now()
	j.Status = ProductSyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *ProductSyncJob) Complete(report *integration.SyncReport) {
	now := time.Now()
	j.Status = ProductSyncJobStatusSuccess
	j.CompletedAt = &now
	j.Report = report
}

// Fail marks the job as failed, keeping the partial report if any
func (j *ProductSyncJob) Fail(err string, report *integration.SyncReport) {
	now := time.Now()
	j.Status = ProductSyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
	j.Report = report
}

// IsFinished reports whether the job reached a terminal status
func (j *ProductSyncJob) IsFinished() bool {
	return j.Status == ProductSyncJobStatusSuccess || j.Status == ProductSyncJobStatusFailed
}

// Duration is the run time of a finished job, or zero
func (j *ProductSyncJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

func (j *ProductSyncJob) clone() *ProductSyncJob {
	c := *j
	if j.Report != nil {
		r := *j.Report
		c.Report = &r
	}
	return &c
}

// ---------------------------------------------------------------------------
// ProductSyncScheduler
// ---------------------------------------------------------------------------

// SyncRunner runs one complete product sync
type SyncRunner interface {
	Run(ctx context.Context) (*integration.SyncReport, error)
}

// ProductSyncSchedulerConfig holds configuration for the product sync scheduler
type ProductSyncSchedulerConfig struct {
	// HistorySize is how many finished jobs are kept for the status endpoint
	HistorySize int
}

// DefaultProductSyncSchedulerConfig returns default configuration
func DefaultProductSyncSchedulerConfig() ProductSyncSchedulerConfig {
	return ProductSyncSchedulerConfig{HistorySize: 20}
}

// Validate validates the configuration
func (c *ProductSyncSchedulerConfig) Validate() error {
	if c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ProductSyncScheduler dispatches product syncs as background jobs.
// Jobs run on the scheduler's own context, so they outlive the request
// that triggered them and stop only when the scheduler stops.
type ProductSyncScheduler struct {
	config ProductSyncSchedulerConfig
	runner SyncRunner
	lock   cache.SyncLock
	logger *zap.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
	history []*ProductSyncJob // oldest first
}

const tracerName = "github.com/catalogsync/backend/internal/infrastructure/scheduler"

// SchedulerOption configures a ProductSyncScheduler
type SchedulerOption func(*ProductSyncScheduler)

// WithTracerProvider traces each run as a product_sync.run span
func WithTracerProvider(tp trace.TracerProvider) SchedulerOption {
	return func(s *ProductSyncScheduler) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// NewProductSyncScheduler creates a new scheduler
func NewProductSyncScheduler(
	config ProductSyncSchedulerConfig,
	runner SyncRunner,
	lock cache.SyncLock,
	logger *zap.Logger,
	opts ...SchedulerOption,
) (*ProductSyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &ProductSyncScheduler{
		config: config,
		runner: runner,
		lock:   lock,
		logger: logger.Named("product_sync"),
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TriggerSync starts a sync in the background and returns its job.
// It returns ErrSyncAlreadyInProgress without doing any work when another
// sync holds the lock.
func (s *ProductSyncScheduler) TriggerSync(ctx context.Context, source string) (*ProductSyncJob, error) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return nil, ErrSchedulerNotRunning
	}

	release, acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !acquired {
		return nil, ErrSyncAlreadyInProgress
	}

	job := NewProductSyncJob(source)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		release()
		return nil, ErrSchedulerNotRunning
	}
	s.appendLocked(job)
	s.wg.Add(1)
	snapshot := job.clone()
	s.mu.Unlock()

	go s.execute(job, release, trace.LinkFromContext(ctx))

	s.logger.Info("Product sync triggered",
		zap.String("job_id", job.ID.String()),
		zap.String("source", source),
	)
	return snapshot, nil
}

// execute runs the job. Failures and panics end up in the job record, the
// run span and the log; they never reach the caller of TriggerSync. The span
// is a new root linked to the triggering request, since the run outlives it.
func (s *ProductSyncScheduler) execute(job *ProductSyncJob, release func(), trigger trace.Link) {
	defer s.wg.Done()
	defer release()

	ctx, span := s.tracer.Start(s.ctx, "product_sync.run",
		trace.WithNewRoot(),
		trace.WithLinks(trigger),
		trace.WithAttributes(
			attribute.String("sync.job_id", job.ID.String()),
			attribute.String("sync.source", job.Source),
		),
	)
	defer span.End()

	ctx, jobLogger := logger.WithJobID(ctx, s.logger, job.ID.String())
	jobLogger = logger.WithTraceContext(ctx, jobLogger)
	ctx = logger.WithContext(ctx, jobLogger)

	defer func() {
		if r := recover(); r != nil {
			jobLogger.Error("Product sync panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			span.SetStatus(codes.Error, "panic")
			s.update(job, func(j *ProductSyncJob) { j.Fail(fmt.Sprintf("panic: %v", r), nil) })
		}
	}()

	s.update(job, (*ProductSyncJob).Start)

	report, err := s.runner.Run(ctx)
	recordReport(span, report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobLogger.Error("Product sync failed", zap.Error(err))
		s.update(job, func(j *ProductSyncJob) { j.Fail(err.Error(), report) })
		return
	}

	s.update(job, func(j *ProductSyncJob) { j.Complete(report) })
	jobLogger.Info("Product sync finished", zap.Duration("duration", job.Duration()))
}

func recordReport(span trace.Span, report *integration.SyncReport) {
	if report == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("sync.pages", report.Pages),
		attribute.Int("sync.processed", report.Processed),
		attribute.Int("sync.skipped", report.Skipped),
		attribute.Int("sync.user_errors", report.UserErrors),
	)
}

func (s *ProductSyncScheduler) update(job *ProductSyncJob, fn func(*ProductSyncJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(job)
}

func (s *ProductSyncScheduler) appendLocked(job *ProductSyncJob) {
	s.history = append(s.history, job)
	if excess := len(s.history) - s.config.HistorySize; excess > 0 {
		s.history = append([]*ProductSyncJob(nil), s.history[excess:]...)
	}
}

// LatestJob returns a copy of the most recent job
func (s *ProductSyncScheduler) LatestJob() (*ProductSyncJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return nil, false
	}
	return s.history[len(s.history)-1].clone(), true
}

// History returns copies of up to limit jobs, newest first.
// A non-positive limit returns all kept jobs.
func (s *ProductSyncScheduler) History(limit int) []*ProductSyncJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	jobs := make([]*ProductSyncJob, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(jobs) < limit; i-- {
		jobs = append(jobs, s.history[i].clone())
	}
	return jobs
}

// IsRunning reports whether a job started by this scheduler is still running
func (s *ProductSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.history {
		if !j.IsFinished() {
			return true
		}
	}
	return false
}

// Stop rejects new triggers, cancels the running job and waits for it to
// return or for ctx to expire.
func (s *ProductSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Product sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
