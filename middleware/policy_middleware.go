package middleware

import (
	"net/http"

	"github.com/upb/fetchguard/internal/observability"
	"github.com/upb/fetchguard/internal/policy"
	"github.com/upb/fetchguard/models"
	"go.uber.org/zap"
)

const (
	maxRecordedPath       = 2048
	maxRecordedRemoteAddr = 64
)

// BlockRecorder receives blocked requests for auditing. Record must not block.
type BlockRecorder interface {
	Record(event *models.BlockEvent) error
}

// IsolationMiddleware enforces the isolation policy attached to each request
type IsolationMiddleware struct {
	responder *policy.Responder
	recorder  BlockRecorder
	metrics   observability.Metrics
	logger    *zap.Logger
}

// IsolationOption configures optional IsolationMiddleware collaborators
type IsolationOption func(*IsolationMiddleware)

// WithBlockRecorder audits every blocked request
func WithBlockRecorder(r BlockRecorder) IsolationOption {
	return func(m *IsolationMiddleware) { m.recorder = r }
}

// WithMetrics records one decision per request
func WithMetrics(metrics observability.Metrics) IsolationOption {
	return func(m *IsolationMiddleware) { m.metrics = metrics }
}

// NewIsolationMiddleware creates a new IsolationMiddleware. A nil responder
// uses the built-in rejection pages.
func NewIsolationMiddleware(responder *policy.Responder, logger *zap.Logger, opts ...IsolationOption) *IsolationMiddleware {
	if responder == nil {
		responder = policy.NewResponder(nil)
	}
	m := &IsolationMiddleware{
		responder: responder,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enforce evaluates the request against the attached policy before next
// runs. Requests without a policy pass through untouched.
func (m *IsolationMiddleware) Enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		p, ok := PolicyFromContext(ctx)
		if !ok {
			m.record(r, observability.PassThrough)
			next.ServeHTTP(w, r)
			return
		}

		req := policy.RequestFrom(r)
		decision, rule := policy.Explain(req, p)
		m.record(r, observability.DecisionLabels{
			Decision:   decision.String(),
			Rule:       string(rule),
			ReportOnly: decision == policy.Block && p.ReportOnly(),
		})

		if decision == policy.Allow {
			next.ServeHTTP(w, r)
			return
		}

		requestID := GetRequestIDFromContext(ctx)
		if p.LogOnBlock() {
			m.logger.Warn("blocked request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Bool("report_only", p.ReportOnly()))
		}
		m.audit(r, requestID, p.ReportOnly())

		if p.ReportOnly() {
			next.ServeHTTP(w, r)
			return
		}

		if err := m.responder.Build(r).Write(w); err != nil {
			m.logger.Debug("failed to write rejection response",
				zap.String("request_id", requestID),
				zap.Error(err))
		}
	})
}

func (m *IsolationMiddleware) record(r *http.Request, labels observability.DecisionLabels) {
	if m.metrics != nil {
		m.metrics.RecordDecision(r.Context(), labels)
	}
}

func (m *IsolationMiddleware) audit(r *http.Request, requestID string, reportOnly bool) {
	if m.recorder == nil {
		return
	}
	event := models.NewBlockEvent(r.Method, truncate(r.URL.Path, maxRecordedPath)).
		WithFetchMetadata(
			r.Header.Get(policy.HeaderSecFetchSite),
			r.Header.Get(policy.HeaderSecFetchMode),
			r.Header.Get(policy.HeaderSecFetchDest),
		).
		WithRequest(requestID, truncate(r.RemoteAddr, maxRecordedRemoteAddr)).
		WithReportOnly(reportOnly)

	if err := m.recorder.Record(event); err != nil {
		m.logger.Debug("block event not recorded",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
