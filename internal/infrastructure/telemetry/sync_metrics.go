package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys on the sync instruments.
var (
	AttrSyncAction  = attribute.Key("sync.action")
	AttrSyncOutcome = attribute.Key("sync.outcome")
	AttrSyncStatus  = attribute.Key("sync.status")
)

// RunDurationBuckets are bucket boundaries for full sync runs, in seconds.
// A run paces one mutation per second, so runs span minutes to hours.
var RunDurationBuckets = []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400}

// SyncMetrics counts product sync activity. It satisfies the metrics sink
// the sync service reports to.
type SyncMetrics struct {
	products    metric.Int64Counter
	userErrors  metric.Int64Counter
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewSyncMetrics creates the product sync instruments on the given meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	products, err := meter.Int64Counter("catalog_sync_products_total",
		metric.WithDescription("Products handled by the sync, by pending action and outcome"),
		metric.WithUnit("{product}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create products counter: %w", err)
	}

	userErrors, err := meter.Int64Counter("catalog_sync_user_errors_total",
		metric.WithDescription("Validation errors reported by the remote catalog"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user errors counter: %w", err)
	}

	runs, err := meter.Int64Counter("catalog_sync_runs_total",
		metric.WithDescription("Completed sync runs by final status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	duration, err := meter.Float64Histogram("catalog_sync_run_duration_seconds",
		metric.WithDescription("Wall time of a sync run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(RunDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	return &SyncMetrics{
		products:    products,
		userErrors:  userErrors,
		runs:        runs,
		runDuration: duration,
	}, nil
}

// RecordProduct counts one product as synced or skipped
func (m *SyncMetrics) RecordProduct(ctx context.Context, action, outcome string) {
	m.products.Add(ctx, 1, metric.WithAttributes(AttrSyncAction.String(action), AttrSyncOutcome.String(outcome)))
}

// RecordUserErrors adds remote validation errors
func (m *SyncMetrics) RecordUserErrors(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.userErrors.Add(ctx, int64(count))
}

// RecordRun counts a finished run and its duration
func (m *SyncMetrics) RecordRun(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(AttrSyncStatus.String(status))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
}
