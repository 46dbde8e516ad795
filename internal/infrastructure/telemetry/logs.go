package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds OTLP log export configuration. Level is the lowest zap
// level forwarded to the collector; local output is unaffected.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	Level             string
}

// LoggerProvider bridges zap entries to an OTLP log exporter.
type LoggerProvider struct {
	provider    *sdklog.LoggerProvider
	logger      *zap.Logger
	serviceName string
	level       zapcore.Level
}

// NewLoggerProvider starts batched OTLP log export and installs the provider globally.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{logger: logger, serviceName: cfg.ServiceName, level: zapcore.InfoLevel}
	if !cfg.Enabled {
		logger.Info("Log export disabled")
		return lp, nil
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log export level %q: %w", cfg.Level, err)
		}
		lp.level = level
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}

	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	lp.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.provider)

	logger.Info("Log export enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Stringer("level", lp.level),
	)
	return lp, nil
}

// Attach returns a logger that writes to log's core and, when export is
// enabled, to the collector as well. log itself is not modified.
func (lp *LoggerProvider) Attach(log *zap.Logger) (*zap.Logger, error) {
	if lp.provider == nil {
		return log, nil
	}

	bridge, err := zapcore.NewIncreaseLevelCore(
		otelzap.NewCore(lp.serviceName,
			otelzap.WithLoggerProvider(lp.provider),
			otelzap.WithVersion(ServiceVersion),
		),
		lp.level,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build log bridge: %w", err)
	}

	return log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, bridge)
	})), nil
}

// Shutdown exports buffered records and stops the exporter.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}
	return shutdownSignal(ctx, "logs", lp.logger, lp.provider.Shutdown)
}
