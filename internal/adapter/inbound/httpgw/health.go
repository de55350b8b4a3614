package httpgw

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/Ledger-Gate/ledgergate/internal/adapter/outbound/memory"
	"github.com/Ledger-Gate/ledgergate/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker verifies component health.
type HealthChecker struct {
	rateLimiter  *memory.TokenBucketLimiter
	auditService *service.AuditService
	version      string
}

// NewHealthChecker creates a HealthChecker with optional components.
// Pass nil for components that aren't available.
func NewHealthChecker(rateLimiter *memory.TokenBucketLimiter, auditService *service.AuditService, version string) *HealthChecker {
	return &HealthChecker{
		rateLimiter:  rateLimiter,
		auditService: auditService,
		version:      version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)

	if h.rateLimiter != nil {
		checks["rate_limiter"] = fmt.Sprintf("ok (%d keys)", h.rateLimiter.Size())
	} else {
		checks["rate_limiter"] = "not configured"
	}

	if h.auditService != nil {
		checks["audit"] = fmt.Sprintf("ok (depth %d, drops %d)",
			h.auditService.ChannelDepth(), h.auditService.DroppedRecords())
	} else {
		checks["audit"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return HealthResponse{
		Status:  "healthy",
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns the /health endpoint handler.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})
}
