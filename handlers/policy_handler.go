package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/upb/fetchguard/internal/observability"
	"github.com/upb/fetchguard/internal/policy"
	"github.com/upb/fetchguard/middleware"
	"github.com/upb/fetchguard/models"
	"github.com/upb/fetchguard/repositories"
	"github.com/upb/fetchguard/services"
	"github.com/upb/fetchguard/services/audit"
	policysvc "github.com/upb/fetchguard/services/policy"
	"github.com/upb/fetchguard/utils"
	"go.uber.org/zap"
)

// PolicyManager defines the policy operations exposed over the admin API
type PolicyManager interface {
	Current() *policy.Snapshot
	Reload() (*policy.Snapshot, error)
	ReplaceDefault(opts policy.Options, enabled *bool) (*policy.Snapshot, error)
	LastReload() policysvc.ReloadStatus
}

// AuditStatsSource reports audit pipeline counters
type AuditStatsSource interface {
	Stats() audit.Stats
}

// UpdatePolicyRequest replaces the default policy. Route overrides are kept.
// Default is applied over the active default options, so omitted fields keep
// their current values.
type UpdatePolicyRequest struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Default json.RawMessage `json:"default"`
}

// PolicyResponse represents the active policy
type PolicyResponse struct {
	Policy     policy.SnapshotView    `json:"policy"`
	LastReload policysvc.ReloadStatus `json:"last_reload"`
}

// ListBlocksQuery holds GET /admin/blocks parameters
type ListBlocksQuery struct {
	Limit int `validate:"min=1,max=500"`
}

// StatsQuery holds GET /admin/stats parameters
type StatsQuery struct {
	WindowHours int `validate:"min=1,max=720"`
}

// StatsResponse represents decision and audit statistics
type StatsResponse struct {
	Decisions  []observability.Counter `json:"decisions"`
	Audit      *audit.Stats            `json:"audit,omitempty"`
	TopBlocked []*models.BlockStat     `json:"top_blocked,omitempty"`
}

// PolicyHandler handles admin policy HTTP requests
type PolicyHandler struct {
	policies PolicyManager
	blocks   repositories.BlockEventRepository
	counters *observability.DecisionCounters
	audit    AuditStatsSource
	logger   *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler. blocks and audit are nil
// when no database is configured.
func NewPolicyHandler(
	policies PolicyManager,
	blocks repositories.BlockEventRepository,
	counters *observability.DecisionCounters,
	auditStats AuditStatsSource,
	logger *zap.Logger,
) *PolicyHandler {
	return &PolicyHandler{
		policies: policies,
		blocks:   blocks,
		counters: counters,
		audit:    auditStats,
		logger:   logger,
	}
}

// HandleGetPolicy handles GET /admin/policy
func (h *PolicyHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.policyResponse(h.policies.Current()))
}

// HandleUpdatePolicy handles PUT /admin/policy
func (h *PolicyHandler) HandleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req UpdatePolicyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if len(req.Default) == 0 || bytes.Equal(bytes.TrimSpace(req.Default), []byte("null")) {
		_ = utils.WriteBadRequest(w, "Validation failed", map[string]interface{}{
			"default": "default is required",
		})
		return
	}

	opts := policy.DefaultOptions()
	if current := h.policies.Current(); current != nil {
		opts = current.Default.Options()
	}
	if err := utils.DecodeJSONBytes(req.Default, &opts); err != nil {
		_ = utils.WriteBadRequest(w, "default: "+err.Error(), nil)
		return
	}

	snap, err := h.policies.ReplaceDefault(opts, req.Enabled)
	if err != nil {
		h.logger.Warn("policy update rejected",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	subject := ""
	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		subject = claims.Subject
	}
	h.logger.Info("policy updated via admin API",
		zap.String("request_id", requestID),
		zap.String("sub", subject),
		zap.Bool("enabled", snap.Enabled))

	_ = utils.WriteOK(w, h.policyResponse(snap))
}

// HandleReloadPolicy handles POST /admin/policy/reload
func (h *PolicyHandler) HandleReloadPolicy(w http.ResponseWriter, r *http.Request) {
	snap, err := h.policies.Reload()
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, h.policyResponse(snap))
}

// HandleListBlocks handles GET /admin/blocks?limit=
func (h *PolicyHandler) HandleListBlocks(w http.ResponseWriter, r *http.Request) {
	if h.blocks == nil {
		HandleServiceError(w, services.ErrAuditUnavailable, h.logger)
		return
	}

	limit, err := utils.QueryInt(r, "limit", 50)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	query := ListBlocksQuery{Limit: limit}
	if err := utils.ValidateStruct(&query); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	events, err := h.blocks.ListRecent(r.Context(), query.Limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if events == nil {
		events = []*models.BlockEvent{}
	}

	_ = utils.WriteOK(w, events)
}

// HandleStats handles GET /admin/stats?window_hours=
func (h *PolicyHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	window, err := utils.QueryInt(r, "window_hours", 24)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	query := StatsQuery{WindowHours: window}
	if err := utils.ValidateStruct(&query); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	response := StatsResponse{Decisions: []observability.Counter{}}
	if h.counters != nil {
		response.Decisions = h.counters.Snapshot()
	}
	if h.audit != nil {
		stats := h.audit.Stats()
		response.Audit = &stats
	}
	if h.blocks != nil {
		since := time.Now().UTC().Add(-time.Duration(query.WindowHours) * time.Hour)
		top, err := h.blocks.CountByPath(r.Context(), since, 10)
		if err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
		response.TopBlocked = top
	}

	_ = utils.WriteOK(w, response)
}

func (h *PolicyHandler) policyResponse(snap *policy.Snapshot) PolicyResponse {
	return PolicyResponse{
		Policy:     snap.View(),
		LastReload: h.policies.LastReload(),
	}
}
