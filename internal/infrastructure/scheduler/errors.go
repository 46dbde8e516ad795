package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a sync on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrSyncAlreadyInProgress is returned when a product sync is already running
	ErrSyncAlreadyInProgress = errors.New("product sync already in progress")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
