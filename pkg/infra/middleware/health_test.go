package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/linkvault/pkg/utils/json"
)

func TestHealthManager_NoCheckers(t *testing.T) {
	h := NewHealthManager("v1.0.0")
	resp := h.Check(context.Background())
	assert.Equal(t, HealthStatusUp, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)
}

func TestHealthManager_Check(t *testing.T) {
	h := NewHealthManager("")
	h.RegisterChecker("redis", func(context.Context) error { return nil })
	h.RegisterChecker("qdrant", func(context.Context) error { return errors.New("connection refused") })

	assert.Equal(t, []string{"qdrant", "redis"}, h.Names())

	resp := h.Check(context.Background())
	assert.Equal(t, HealthStatusDown, resp.Status)
	assert.Equal(t, CheckResult{Status: HealthStatusUp}, resp.Checks["redis"])
	assert.Equal(t, CheckResult{Status: HealthStatusDown, Message: "connection refused"}, resp.Checks["qdrant"])
}

func TestHealthManager_CheckTimeout(t *testing.T) {
	h := NewHealthManager("")
	h.timeout = 20 * time.Millisecond
	h.RegisterChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := h.Check(context.Background())
	assert.Equal(t, HealthStatusDown, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Message)
}

func TestHealthManager_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewHealthManager("")
	healthy := true
	h.RegisterChecker("embedder", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("model unavailable")
	})

	r := gin.New()
	r.GET("/health", h.Handler())
	r.GET("/live", LivenessHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	healthy = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthStatusDown, resp.Status)
	assert.Equal(t, "model unavailable", resp.Checks["embedder"].Message)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVersionHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/version", VersionHandler(true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "git_version")
	assert.NotContains(t, resp, "git_commit")
}
