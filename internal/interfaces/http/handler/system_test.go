package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/infrastructure/persistence"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type statsPinger struct{ fakePinger }

func (statsPinger) Stats() (persistence.ConnectionStats, error) {
	return persistence.ConnectionStats{MaxOpenConnections: 10, OpenConnections: 2, Idle: 2}, nil
}

func serveSystem(t *testing.T, h *SystemHandler, path string) (int, map[string]any) {
	t.Helper()
	engine := gin.New()
	h.RegisterRoutes(engine.Group("/api/v1"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestSystemHandler_Ping(t *testing.T) {
	code, body := serveSystem(t, NewSystemHandler("catalog-sync", nil), "/api/v1/system/ping")
	assert.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "pong", data["message"])
	assert.Equal(t, "catalog-sync", data["service"])
}

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
	}{
		{"no database configured", nil, http.StatusOK},
		{"database reachable", fakePinger{}, http.StatusOK},
		{"database down", fakePinger{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serveSystem(t, NewSystemHandler("catalog-sync", tt.db), "/api/v1/system/health")
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.status == http.StatusOK, body["success"])
		})
	}
}

func TestSystemHandler_HealthReportsPool(t *testing.T) {
	code, body := serveSystem(t, NewSystemHandler("catalog-sync", statsPinger{}), "/api/v1/system/health")
	require.Equal(t, http.StatusOK, code)
	pool := body["data"].(map[string]any)["pool"].(map[string]any)
	assert.Equal(t, float64(10), pool["max_open_connections"])
	assert.Equal(t, float64(2), pool["idle"])
}
