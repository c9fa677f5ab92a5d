package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/fetchguard/internal/policy"
	"github.com/upb/fetchguard/services"
	"github.com/upb/fetchguard/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"struct validation", utils.ValidateStruct(&ListBlocksQuery{Limit: 0}), http.StatusBadRequest, `"Limit"`},
		{"invalid options", fmt.Errorf("%w: bad prefix", policy.ErrInvalidOptions), http.StatusBadRequest, "bad prefix"},
		{"domain validation", services.WrapValidation("default", "invalid policy options", policy.ErrInvalidOptions), http.StatusBadRequest, "invalid policy options"},
		{"no policy file", services.ErrNoPolicyFile, http.StatusConflict, "conflict"},
		{"audit unavailable", services.ErrAuditUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{"wrapped internal", services.WrapInternal("reload", errors.New("disk")), http.StatusInternalServerError, "internal_error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotContains(t, w.Body.String(), "disk")
		})
	}

	t.Run("validation details are returned", func(t *testing.T) {
		cause := fmt.Errorf("%w: AssetPathPrefix must start with \"/\"", policy.ErrInvalidOptions)
		w := httptest.NewRecorder()
		HandleServiceError(w, services.WrapValidation("default", "invalid policy options", cause), zap.NewNop())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, cause.Error(), response.Details["default"])
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleServiceError(w, nil, zap.NewNop())
		assert.Equal(t, 0, w.Body.Len())
	})
}
