package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/infrastructure/cache"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// blockingRunner runs until released, counting invocations
type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	report  *integration.SyncReport
	err     error
	panic   any
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
		report:  &integration.SyncReport{Pages: 1, Processed: 3, Cleared: 3},
	}
}

func (r *blockingRunner) Run(ctx context.Context) (*integration.SyncReport, error) {
	r.calls.Add(1)
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
		return r.report, ctx.Err()
	}
	if r.panic != nil {
		panic(r.panic)
	}
	return r.report, r.err
}

func newTestScheduler(t *testing.T, runner SyncRunner, logger *zap.Logger) (*ProductSyncScheduler, *cache.InMemorySyncLock) {
	t.Helper()
	lock := cache.NewInMemorySyncLock()
	s, err := NewProductSyncScheduler(ProductSyncSchedulerConfig{HistorySize: 3}, runner, lock, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, lock
}

func waitForJob(t *testing.T, s *ProductSyncScheduler, id uuid.UUID) *ProductSyncJob {
	t.Helper()
	var job *ProductSyncJob
	require.Eventually(t, func() bool {
		latest, ok := s.LatestJob()
		if !ok || latest.ID != id || !latest.IsFinished() {
			return false
		}
		job = latest
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func waitUnlocked(t *testing.T, lock *cache.InMemorySyncLock) {
	t.Helper()
	require.Eventually(t, func() bool { return !lock.Held() }, 2*time.Second, 5*time.Millisecond)
}

// ---------------------------------------------------------------------------
// ProductSyncJob Tests
// ---------------------------------------------------------------------------

func TestProductSyncJob_Lifecycle(t *testing.T) {
	job := NewProductSyncJob(SourceHTTP)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, ProductSyncJobStatusPending, job.Status)
	assert.False(t, job.IsFinished())
	assert.Zero(t, job.Duration())

	job.Error = "previous"
	job.Start()
	assert.Equal(t, ProductSyncJobStatusRunning, job.Status)
	assert.NotNil(t, job.StartedAt)
	assert.Empty(t, job.Error)

	report := &integration.SyncReport{Processed: 2}
	job.Complete(report)
	assert.Equal(t, ProductSyncJobStatusSuccess, job.Status)
	assert.True(t, job.IsFinished())
	assert.Same(t, report, job.Report)
	assert.GreaterOrEqual(t, job.Duration(), time.Duration(0))
}

func TestProductSyncJob_Fail(t *testing.T) {
	job := NewProductSyncJob(SourceInterval)
	job.Start()
	job.Fail("upsert: platform unavailable", &integration.SyncReport{Processed: 1})

	assert.Equal(t, ProductSyncJobStatusFailed, job.Status)
	assert.Equal(t, "upsert: platform unavailable", job.Error)
	assert.Equal(t, 1, job.Report.Processed)
	assert.NotNil(t, job.CompletedAt)
}

func TestProductSyncSchedulerConfig_Validate(t *testing.T) {
	cfg := DefaultProductSyncSchedulerConfig()
	assert.NoError(t, cfg.Validate())

	cfg.HistorySize = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	_, err := NewProductSyncScheduler(cfg, newBlockingRunner(), cache.NewInMemorySyncLock(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// ---------------------------------------------------------------------------
// ProductSyncScheduler Tests
// ---------------------------------------------------------------------------

func TestProductSyncScheduler_TriggerSync_Success(t *testing.T) {
	runner := newBlockingRunner()
	s, lock := newTestScheduler(t, runner, nil)

	job, err := s.TriggerSync(context.Background(), SourceHTTP)
	require.NoError(t, err)
	assert.Equal(t, SourceHTTP, job.Source)

	<-runner.started
	assert.True(t, lock.Held())
	assert.True(t, s.IsRunning())

	close(runner.release)
	done := waitForJob(t, s, job.ID)
	assert.Equal(t, ProductSyncJobStatusSuccess, done.Status)
	assert.Equal(t, 3, done.Report.Processed)
	waitUnlocked(t, lock)
	assert.False(t, s.IsRunning())
}

func TestProductSyncScheduler_TriggerSync_SingleFlight(t *testing.T) {
	runner := newBlockingRunner()
	s, _ := newTestScheduler(t, runner, nil)

	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.TriggerSync(context.Background(), SourceHTTP)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrSyncAlreadyInProgress):
				rejected.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(15), rejected.Load())

	<-runner.started
	close(runner.release)
	require.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Len(t, s.History(0), 1)
}

func TestProductSyncScheduler_TriggerSync_RunsOutsideRequestContext(t *testing.T) {
	runner := newBlockingRunner()
	s, _ := newTestScheduler(t, runner, nil)

	reqCtx, cancel := context.WithCancel(context.Background())
	job, err := s.TriggerSync(reqCtx, SourceHTTP)
	require.NoError(t, err)
	<-runner.started
	cancel()

	close(runner.release)
	done := waitForJob(t, s, job.ID)
	assert.Equal(t, ProductSyncJobStatusSuccess, done.Status)
}

func TestProductSyncScheduler_FailedRunReleasesLock(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("sync product 7 (lamp): upsert: rate limited")
	core, recorded := observer.New(zapcore.ErrorLevel)
	s, lock := newTestScheduler(t, runner, zap.New(core))

	job, err := s.TriggerSync(context.Background(), SourceHTTP)
	require.NoError(t, err)
	<-runner.started
	close(runner.release)

	done := waitForJob(t, s, job.ID)
	assert.Equal(t, ProductSyncJobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "rate limited")
	require.NotNil(t, done.Report)
	waitUnlocked(t, lock)

	entries := recorded.FilterMessage("Product sync failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, job.ID.String(), entries[0].ContextMap()["job_id"])
}

func TestProductSyncScheduler_PanicIsRecovered(t *testing.T) {
	runner := newBlockingRunner()
	runner.panic = "nil map"
	s, lock := newTestScheduler(t, runner, nil)

	job, err := s.TriggerSync(context.Background(), SourceHTTP)
	require.NoError(t, err)
	<-runner.started
	close(runner.release)

	done := waitForJob(t, s, job.ID)
	assert.Equal(t, ProductSyncJobStatusFailed, done.Status)
	assert.Equal(t, "panic: nil map", done.Error)
	waitUnlocked(t, lock)

	// the scheduler keeps working after a panic
	runner.panic = nil
	runner.release = make(chan struct{})
	next, err := s.TriggerSync(context.Background(), SourceHTTP)
	require.NoError(t, err)
	<-runner.started
	close(runner.release)
	assert.Equal(t, ProductSyncJobStatusSuccess, waitForJob(t, s, next.ID).Status)
}

func TestProductSyncScheduler_TracesRun(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer provider.Shutdown(context.Background())

	runner := newBlockingRunner()
	runner.err = errors.New("upsert: remote catalog unavailable")
	core, recorded := observer.New(zapcore.ErrorLevel)
	lock := cache.NewInMemorySyncLock()
	s, err := NewProductSyncScheduler(ProductSyncSchedulerConfig{HistorySize: 3}, runner, lock, zap.New(core),
		WithTracerProvider(provider))
	require.NoError(t, err)
	defer s.Stop(context.Background())

	reqCtx, reqSpan := provider.Tracer("test").Start(context.Background(), "POST /api/v1/sync/products")
	job, err := s.TriggerSync(reqCtx, SourceHTTP)
	require.NoError(t, err)
	reqSpan.End()
	<-runner.started
	close(runner.release)
	waitForJob(t, s, job.ID)

	var run sdktrace.ReadOnlySpan
	require.Eventually(t, func() bool {
		for _, span := range exporter.GetSpans().Snapshots() {
			if span.Name() == "product_sync.run" {
				run = span
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	assert.False(t, run.Parent().IsValid(), "run span starts a new trace")
	require.Len(t, run.Links(), 1)
	assert.Equal(t, reqSpan.SpanContext().TraceID(), run.Links()[0].SpanContext.TraceID())
	assert.Contains(t, run.Attributes(), attribute.String("sync.job_id", job.ID.String()))
	assert.Contains(t, run.Attributes(), attribute.Int("sync.processed", 3))
	assert.Equal(t, codes.Error, run.Status().Code)

	entries := recorded.FilterMessage("Product sync failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, run.SpanContext().TraceID().String(), entries[0].ContextMap()["trace_id"])
}

func TestProductSyncScheduler_History(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	s, lock := newTestScheduler(t, runner, nil)

	_, ok := s.LatestJob()
	assert.False(t, ok)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		job, err := s.TriggerSync(context.Background(), SourceHTTP)
		require.NoError(t, err)
		<-runner.started
		waitForJob(t, s, job.ID)
		waitUnlocked(t, lock)
		ids = append(ids, job.ID)
	}

	history := s.History(0)
	require.Len(t, history, 3)
	assert.Equal(t, ids[4], history[0].ID)
	assert.Equal(t, ids[2], history[2].ID)

	assert.Len(t, s.History(2), 2)

	latest, ok := s.LatestJob()
	require.True(t, ok)
	assert.Equal(t, ids[4], latest.ID)

	// returned jobs are copies
	latest.Status = ProductSyncJobStatusFailed
	again, _ := s.LatestJob()
	assert.Equal(t, ProductSyncJobStatusSuccess, again.Status)
}

func TestProductSyncScheduler_Stop(t *testing.T) {
	runner := newBlockingRunner()
	s, lock := newTestScheduler(t, runner, nil)

	job, err := s.TriggerSync(context.Background(), SourceHTTP)
	require.NoError(t, err)
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	latest, _ := s.LatestJob()
	assert.Equal(t, job.ID, latest.ID)
	assert.Equal(t, ProductSyncJobStatusFailed, latest.Status)
	assert.False(t, lock.Held())

	_, err = s.TriggerSync(context.Background(), SourceHTTP)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	assert.NoError(t, s.Stop(ctx))
}

type failingLock struct{}

func (failingLock) TryAcquire(context.Context) (func(), bool, error) {
	return nil, false, errors.New("redis: connection refused")
}

func TestProductSyncScheduler_LockError(t *testing.T) {
	s, err := NewProductSyncScheduler(DefaultProductSyncSchedulerConfig(), newBlockingRunner(), failingLock{}, nil)
	require.NoError(t, err)

	_, err = s.TriggerSync(context.Background(), SourceHTTP)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire sync lock")
	_, ok := s.LatestJob()
	assert.False(t, ok)
}
