package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/persistence"
)

// Pinger checks a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// poolStatsSource is implemented by *persistence.Database
type poolStatsSource interface {
	Stats() (persistence.ConnectionStats, error)
}

// SystemHandler serves liveness and readiness checks
type SystemHandler struct {
	BaseHandler
	db          Pinger
	pingTimeout time.Duration
	serviceName string
}

// NewSystemHandler creates a new SystemHandler. db may be nil, in which case
// readiness only reports the process is up.
func NewSystemHandler(serviceName string, db Pinger) *SystemHandler {
	return &SystemHandler{db: db, pingTimeout: 2 * time.Second, serviceName: serviceName}
}

// RegisterRoutes mounts the handler under /system
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/system")
	g.GET("/ping", h.Ping)
	g.GET("/health", h.Health)
}

// Ping reports the process is alive.
// GET /api/v1/system/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, gin.H{
		"service": h.serviceName,
		"message": "pong",
		"time":    time.Now().UTC(),
	})
}

// Health reports whether the product store is reachable.
// GET /api/v1/system/health
func (h *SystemHandler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.pingTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			logger.GetGinLogger(c).Warn("Database health check failed", zap.Error(err))
			h.ServiceUnavailable(c, "database unavailable")
			return
		}
	}
	data := gin.H{"status": "healthy", "database": h.db != nil}
	if src, ok := h.db.(poolStatsSource); ok {
		if stats, err := src.Stats(); err == nil {
			data["pool"] = stats
		}
	}
	h.Success(c, data)
}
