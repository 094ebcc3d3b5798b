package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	connected := false
	g := gin.New()
	g.GET("/ready", Ready(map[string]Probe{
		"actor":    Actor(func() bool { return connected }),
		"postgres": func(context.Context) string { return ok },
	}))

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "disconnected", body["checks"].(map[string]any)["actor"])

	connected = true
	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUninitialized(t *testing.T) {
	assert.Equal(t, notInitialized, Postgres(context.Background()))
	assert.Equal(t, notInitialized, Redis(context.Background()))
}
