package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/fetchguard/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating admin JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// AuthMiddleware provides authentication middleware for the admin API
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Subject))

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// RequireRole is a middleware that requires a specific role. It must run
// after RequireAuth.
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := GetClaimsFromContext(ctx)
			if claims == nil {
				m.logger.Error("claims not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if claims.Role != role {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("required_role", role),
					zap.String("role", claims.Role))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
