package dto

import (
	"time"

	"github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/infrastructure/scheduler"
)

// Sync trigger states and their user-facing messages
const (
	SyncStatusStarted = "started"
	SyncStatusBusy    = "busy"

	SyncStartedMessage = "Product refresh started in the background"
	SyncBusyMessage    = "A product refresh is already in progress. Please try again later."
)

// SyncTriggerResponse is the body of a trigger request, accepted or not
type SyncTriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

// SyncJobResponse describes one sync run
type SyncJobResponse struct {
	ID          string                  `json:"id"`
	Source      string                  `json:"source"`
	Status      string                  `json:"status"`
	Error       string                  `json:"error,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	StartedAt   *time.Time              `json:"started_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	DurationMs  int64                   `json:"duration_ms"`
	Report      *integration.SyncReport `json:"report,omitempty"`
}

// SyncStatusResponse is the body of the status endpoint
type SyncStatusResponse struct {
	Running         bool              `json:"running"`
	PendingProducts int64             `json:"pending_products"`
	LatestJob       *SyncJobResponse  `json:"latest_job,omitempty"`
	History         []SyncJobResponse `json:"history"`
}

// ToSyncJobResponse converts a scheduler job
func ToSyncJobResponse(job *scheduler.ProductSyncJob) SyncJobResponse {
	return SyncJobResponse{
		ID:          job.ID.String(),
		Source:      job.Source,
		Status:      string(job.Status),
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		DurationMs:  job.Duration().Milliseconds(),
		Report:      job.Report,
	}
}
