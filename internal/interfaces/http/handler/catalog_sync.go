package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/scheduler"
	"github.com/catalogsync/backend/internal/interfaces/http/dto"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// SyncScheduler starts product sync runs and reports on them
type SyncScheduler interface {
	TriggerSync(ctx context.Context, source string) (*scheduler.ProductSyncJob, error)
	LatestJob() (*scheduler.ProductSyncJob, bool)
	History(limit int) []*scheduler.ProductSyncJob
	IsRunning() bool
}

// PendingCounter counts products still waiting for a sync
type PendingCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

// CatalogSyncHandler serves the product refresh endpoints
type CatalogSyncHandler struct {
	BaseHandler
	scheduler SyncScheduler
	pending   PendingCounter
}

// NewCatalogSyncHandler creates a new CatalogSyncHandler
func NewCatalogSyncHandler(s SyncScheduler, pending PendingCounter) *CatalogSyncHandler {
	return &CatalogSyncHandler{scheduler: s, pending: pending}
}

// RegisterRoutes mounts the handler under /catalog
func (h *CatalogSyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/catalog")
	g.POST("/sync", h.TriggerSync)
	g.GET("/sync/status", h.GetStatus)
}

// TriggerSync starts a product refresh in the background.
// POST /api/v1/catalog/sync
func (h *CatalogSyncHandler) TriggerSync(c *gin.Context) {
	log := logger.GetGinLogger(c)

	job, err := h.scheduler.TriggerSync(c.Request.Context(), scheduler.SourceHTTP)
	switch {
	case errors.Is(err, scheduler.ErrSyncAlreadyInProgress):
		log.Info("Product refresh rejected, another run is in progress")
		h.ErrorWithData(c, dto.ErrCodeSyncInProgress, dto.SyncBusyMessage, dto.SyncTriggerResponse{
			Status:  dto.SyncStatusBusy,
			Message: dto.SyncBusyMessage,
		})
		return
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.ServiceUnavailable(c, "Product refresh is unavailable while the server shuts down")
		return
	case err != nil:
		log.Error("Failed to start product refresh", zap.Error(err))
		h.InternalError(c, "Failed to start product refresh")
		return
	}

	log.Info("Product refresh started", zap.String("job_id", job.ID.String()))
	h.Success(c, dto.SyncTriggerResponse{
		Status:  dto.SyncStatusStarted,
		Message: dto.SyncStartedMessage,
		JobID:   job.ID.String(),
	})
}

// GetStatus reports the latest runs and the number of pending products.
// GET /api/v1/catalog/sync/status?limit=10
func (h *CatalogSyncHandler) GetStatus(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			h.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	pending, err := h.pending.CountPending(c.Request.Context())
	if err != nil {
		logger.GetGinLogger(c).Error("Failed to count pending products", zap.Error(err))
		h.InternalError(c, "Failed to read sync status")
		return
	}

	resp := dto.SyncStatusResponse{
		Running:         h.scheduler.IsRunning(),
		PendingProducts: pending,
		History:         []dto.SyncJobResponse{},
	}
	if job, ok := h.scheduler.LatestJob(); ok {
		latest := dto.ToSyncJobResponse(job)
		resp.LatestJob = &latest
	}
	for _, job := range h.scheduler.History(limit) {
		resp.History = append(resp.History, dto.ToSyncJobResponse(job))
	}
	h.Success(c, resp)
}
