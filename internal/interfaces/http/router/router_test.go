package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/catalogsync/backend/internal/interfaces/http/dto"
	"github.com/catalogsync/backend/internal/interfaces/http/middleware"
)

type echoRegistrar struct{}

func (echoRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/echo", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	rg.GET("/boom", func(*gin.Context) { panic("boom") })
}

func newTestEngine(t *testing.T, opts ...RouterOption) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	engine, err := NewEngine(EngineConfig{Mode: gin.TestMode}, zap.New(core))
	require.NoError(t, err)
	NewRouter(engine, opts...).Register(echoRegistrar{}).Setup()
	return engine, logs
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_VersionPrefix(t *testing.T) {
	engine, _ := newTestEngine(t)
	assert.Equal(t, http.StatusOK, serve(engine, "/api/v1/echo").Code)

	engine, _ = newTestEngine(t, WithAPIVersion("v2"))
	assert.Equal(t, http.StatusOK, serve(engine, "/api/v2/echo").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, "/api/v1/echo").Code)
}

func TestRouter_NoRoute(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := serve(engine, "/api/v1/missing")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, dto.ErrCodeNotFound, body.Error.Code)
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), body.Error.RequestID)
}

func TestNewEngine_LogsAndRecovers(t *testing.T) {
	engine, logs := newTestEngine(t)

	w := serve(engine, "/api/v1/echo")
	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), entries[0].ContextMap()["request_id"])

	w = serve(engine, "/api/v1/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestNewEngine_InvalidTrustedProxy(t *testing.T) {
	_, err := NewEngine(EngineConfig{TrustedProxies: []string{"not-an-ip"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewEngine_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer provider.Shutdown(context.Background())

	core, logs := observer.New(zap.InfoLevel)
	engine, err := NewEngine(EngineConfig{
		Mode:           gin.TestMode,
		ServiceName:    "catalog-sync",
		TracerProvider: provider,
	}, zap.New(core))
	require.NoError(t, err)
	NewRouter(engine).Register(echoRegistrar{}).Setup()

	w := serve(engine, "/api/v1/echo")
	require.Equal(t, http.StatusOK, w.Code)

	spans := exporter.GetSpans().Snapshots()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(),
		attribute.String("request_id", w.Header().Get(middleware.RequestIDHeader)))

	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), entries[0].ContextMap()["trace_id"])
}
