package middleware

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the health status.
type HealthStatus string

const (
	// HealthStatusUp indicates the service is healthy.
	HealthStatusUp HealthStatus = "UP"
	// HealthStatusDown indicates the service is unhealthy.
	HealthStatusDown HealthStatus = "DOWN"
)

// defaultCheckTimeout bounds each individual checker.
const defaultCheckTimeout = 3 * time.Second

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
	Version string                 `json:"version,omitempty"`
}

// CheckResult represents an individual health check result.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthChecker performs a single dependency check.
type HealthChecker func(ctx context.Context) error

// HealthManager manages health checks.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
	timeout  time.Duration
}

// NewHealthManager creates a new health manager.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
		timeout:  defaultCheckTimeout,
	}
}

// RegisterChecker registers a health checker. A later registration replaces an earlier one.
func (h *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// Names returns the registered checker names in sorted order.
func (h *HealthManager) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all checkers concurrently. Any failing checker marks the service DOWN.
func (h *HealthManager) Check(ctx context.Context) HealthResponse {
	h.mu.RLock()
	checkers := make(map[string]HealthChecker, len(h.checkers))
	for name, c := range h.checkers {
		checkers[name] = c
	}
	h.mu.RUnlock()

	resp := HealthResponse{Status: HealthStatusUp, Version: h.version}
	if len(checkers) == 0 {
		return resp
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	resp.Checks = make(map[string]CheckResult, len(checkers))
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			result := CheckResult{Status: HealthStatusUp}
			if err := checker(checkCtx); err != nil {
				result = CheckResult{Status: HealthStatusDown, Message: err.Error()}
			}

			mu.Lock()
			resp.Checks[name] = result
			if result.Status == HealthStatusDown {
				resp.Status = HealthStatusDown
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return resp
}

// Handler returns the gin handler serving the aggregated report.
// It answers 503 when any check is down.
func (h *HealthManager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := h.Check(c.Request.Context())
		status := http.StatusOK
		if resp.Status == HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

// LivenessHandler always reports UP while the process serves requests.
func LivenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: HealthStatusUp})
}
