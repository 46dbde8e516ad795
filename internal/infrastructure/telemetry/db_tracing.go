package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// DBTracingConfig controls the gorm tracing plugin.
type DBTracingConfig struct {
	DBName string
	// IncludeQueryVariables puts bound values into db.statement
	IncludeQueryVariables bool
	TracerProvider        trace.TracerProvider
}

// RegisterDBTracing adds a span for every gorm query. Pool metrics come from
// DBMetrics, so the plugin's own metrics are turned off.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig) error {
	opts := []otelgorm.Option{otelgorm.WithoutMetrics()}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.DBName != "" {
		opts = append(opts, otelgorm.WithDBName(cfg.DBName))
	}
	if !cfg.IncludeQueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register gorm tracing: %w", err)
	}
	return nil
}
