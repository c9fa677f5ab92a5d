package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid bearer token allows request", func(t *testing.T) {
		validator := new(MockTokenValidator)
		claims := &Claims{Subject: "ops@example.com", Role: "admin"}
		validator.On("ValidateToken", mock.Anything, "valid-token").Return(claims, nil)

		handler := NewAuthMiddleware(validator, logger).RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := GetClaimsFromContext(r.Context())
			assert.NotNil(t, got)
			assert.Equal(t, "ops@example.com", got.Subject)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/admin/policy", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertExpectations(t)
	})

	t.Run("missing header", func(t *testing.T) {
		validator := new(MockTokenValidator)
		handler := NewAuthMiddleware(validator, logger).RequireAuth(&downstream{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/policy", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		validator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		validator := new(MockTokenValidator)
		handler := NewAuthMiddleware(validator, logger).RequireAuth(&downstream{})

		req := httptest.NewRequest(http.MethodGet, "/admin/policy", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		validator := new(MockTokenValidator)
		validator.On("ValidateToken", mock.Anything, "expired").Return(nil, errors.New("token expired"))
		next := &downstream{}
		handler := NewAuthMiddleware(validator, logger).RequireAuth(next)

		req := httptest.NewRequest(http.MethodGet, "/admin/policy", nil)
		req.Header.Set("Authorization", "bearer expired")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, next.called)
	})
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(new(MockTokenValidator), zap.NewNop())

	tests := []struct {
		name       string
		claims     *Claims
		wantStatus int
	}{
		{"admin allowed", &Claims{Subject: "a", Role: "admin"}, http.StatusOK},
		{"viewer forbidden", &Claims{Subject: "b", Role: "viewer"}, http.StatusForbidden},
		{"no claims", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/policy", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			w := httptest.NewRecorder()
			m.RequireRole("admin")(&downstream{}).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"BEARER  abc ", "abc"},
		{"Token abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, extractBearerToken(req), tt.header)
	}
}
