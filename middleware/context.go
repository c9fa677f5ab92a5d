package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/fetchguard/internal/policy"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for admin JWT claims
	ClaimsKey contextKey = "claims"

	// PolicyKey is the context key for the isolation policy attached to a request
	PolicyKey contextKey = "isolation_policy"
)

// Claims represents admin JWT claims extracted from the token
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	Issuer  string `json:"iss"`
	Exp     int64  `json:"exp"`
}

// policySlot records the policy decision for a request. A nil Policy
// means the request was explicitly exempted.
type policySlot struct {
	Policy *policy.Policy
}

// GetRequestIDFromContext retrieves the request ID from context, falling
// back to the one assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves JWT claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds JWT claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// WithPolicy attaches p as the isolation policy for the request
func WithPolicy(ctx context.Context, p policy.Policy) context.Context {
	return context.WithValue(ctx, PolicyKey, policySlot{Policy: &p})
}

// WithoutPolicy exempts the request from isolation checks, overriding any
// policy attached earlier in the chain
func WithoutPolicy(ctx context.Context) context.Context {
	return context.WithValue(ctx, PolicyKey, policySlot{})
}

// PolicyFromContext returns the isolation policy attached to the request.
// ok is false when no policy is attached or the request was exempted.
func PolicyFromContext(ctx context.Context) (policy.Policy, bool) {
	slot, found := ctx.Value(PolicyKey).(policySlot)
	if !found || slot.Policy == nil {
		return policy.Policy{}, false
	}
	return *slot.Policy, true
}
