package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SyncTrigger starts a product sync
type SyncTrigger interface {
	TriggerSync(ctx context.Context, source string) (*ProductSyncJob, error)
}

// IntervalTriggerConfig holds configuration for the interval trigger
type IntervalTriggerConfig struct {
	// Interval between two trigger attempts
	Interval time.Duration
}

// IntervalTrigger triggers a product sync on a fixed interval. A tick that
// finds a sync already running is skipped.
type IntervalTrigger struct {
	config  IntervalTriggerConfig
	trigger SyncTrigger
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(config IntervalTriggerConfig, trigger SyncTrigger, logger *zap.Logger) (*IntervalTrigger, error) {
	if config.Interval <= 0 {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		config:  config,
		trigger: trigger,
		logger:  logger.Named("interval_trigger"),
	}, nil
}

// Start begins triggering in the background
func (t *IntervalTrigger) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.isRunning = true

	t.wg.Add(1)
	go t.loop(ctx)

	t.logger.Info("Interval trigger started", zap.Duration("interval", t.config.Interval))
}

// Stop stops the trigger and waits for the loop to exit
func (t *IntervalTrigger) Stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	t.cancel()
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("Interval trigger stopped")
}

// IsRunning reports whether the trigger loop is active
func (t *IntervalTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

func (t *IntervalTrigger) loop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire(ctx)
		}
	}
}

func (t *IntervalTrigger) fire(ctx context.Context) {
	job, err := t.trigger.TriggerSync(ctx, SourceInterval)
	switch {
	case err == nil:
		t.logger.Info("Scheduled product sync started", zap.String("job_id", job.ID.String()))
	case errors.Is(err, ErrSyncAlreadyInProgress):
		t.logger.Debug("Product sync already running, skipping tick")
	case errors.Is(err, ErrSchedulerNotRunning):
		t.logger.Debug("Scheduler stopped, skipping tick")
	default:
		t.logger.Warn("Failed to trigger scheduled product sync", zap.Error(err))
	}
}
