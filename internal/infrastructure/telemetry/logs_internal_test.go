package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

func TestLoggerProvider_Attach(t *testing.T) {
	exporter := &recordingExporter{}
	lp := &LoggerProvider{
		provider:    sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter))),
		logger:      zap.NewNop(),
		serviceName: "catalog-sync",
		level:       zapcore.WarnLevel,
	}
	defer lp.Shutdown(context.Background())

	core, logs := observer.New(zapcore.DebugLevel)
	logger, err := lp.Attach(zap.New(core))
	require.NoError(t, err)

	logger.Info("batch fetched", zap.Int("count", 50))
	logger.Warn("product skipped", zap.String("sku", "LAMP-01"))

	assert.Equal(t, 2, logs.Len(), "local core keeps every entry")
	assert.Equal(t, []string{"product skipped"}, exporter.bodies())

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.records, 1)
	assert.Equal(t, log.SeverityWarn, exporter.records[0].Severity())
}

func TestLoggerProvider_AttachDisabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	base := zap.NewNop()
	attached, err := lp.Attach(base)
	require.NoError(t, err)
	assert.Same(t, base, attached)
	assert.NoError(t, lp.Shutdown(context.Background()))
}
