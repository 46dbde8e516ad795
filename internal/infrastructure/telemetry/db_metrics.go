package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// AttrDBState labels pool connections as in_use or idle
var AttrDBState = attribute.Key("db.pool.state")

// DBStatsSource exposes connection pool statistics
type DBStatsSource interface {
	Stats() sql.DBStats
}

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	// PoolStatsInterval defines how often to collect connection pool stats (default: 15s).
	PoolStatsInterval time.Duration
}

// DBMetrics periodically records connection pool gauges
type DBMetrics struct {
	poolConnections    metric.Int64Gauge
	poolConnectionsMax metric.Int64Gauge
	poolWaitTotal      metric.Int64Gauge

	config   DBMetricsConfig
	logger   *zap.Logger
	source   DBStatsSource
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDBMetrics creates a new DBMetrics instance with the given meter.
func NewDBMetrics(meter metric.Meter, source DBStatsSource, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	poolConnections, err := meter.Int64Gauge("db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool connections gauge: %w", err)
	}

	poolConnectionsMax, err := meter.Int64Gauge("db_pool_connections_max",
		metric.WithDescription("Maximum number of open connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool max gauge: %w", err)
	}

	poolWaitTotal, err := meter.Int64Gauge("db_pool_wait_count",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool wait gauge: %w", err)
	}

	return &DBMetrics{
		poolConnections:    poolConnections,
		poolConnectionsMax: poolConnectionsMax,
		poolWaitTotal:      poolWaitTotal,
		config:             cfg,
		logger:             logger,
		source:             source,
		stopCh:             make(chan struct{}),
	}, nil
}

// Start begins collecting pool stats in the background
func (m *DBMetrics) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.PoolStatsInterval)
		defer ticker.Stop()

		m.Collect(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Collect(ctx)
			}
		}
	}()
	m.logger.Debug("Database pool metrics collection started",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

// Collect records the current pool stats once
func (m *DBMetrics) Collect(ctx context.Context) {
	stats := m.source.Stats()
	m.poolConnections.Record(ctx, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
	m.poolConnections.Record(ctx, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolWaitTotal.Record(ctx, stats.WaitCount)
}

// Stop stops collection and waits for the collector to exit. Safe to call twice.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}
