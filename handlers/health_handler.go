package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/fetchguard/repositories"
	policysvc "github.com/upb/fetchguard/services/policy"
	"github.com/upb/fetchguard/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReloadReporter exposes the outcome of the latest policy reload
type ReloadReporter interface {
	LastReload() policysvc.ReloadStatus
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     repositories.HealthChecker
	policy ReloadReporter
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and policy may be nil.
func NewHealthHandler(db repositories.HealthChecker, policy ReloadReporter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		policy: policy,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness check - always returns 200 if the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - the audit database must answer when configured. A
// failed policy reload is reported but does not fail readiness, since the
// previous policy stays active.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	switch {
	case h.db == nil:
		checks["database"] = "not_configured"
	case h.checkDatabase(ctx) != nil:
		checks["database"] = "unhealthy"
		allHealthy = false
	default:
		checks["database"] = "healthy"
	}

	if h.policy != nil {
		if last := h.policy.LastReload(); last.Error != "" {
			checks["policy"] = "stale"
		} else {
			checks["policy"] = "loaded"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}
	return nil
}
