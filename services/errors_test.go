package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeConflict, "reload in progress", baseErr)

	assert.Equal(t, ErrorTypeConflict, domainErr.Type)
	assert.Equal(t, "reload in progress", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name:    "error with wrapped error",
			err:     &DomainError{Type: ErrorTypeInternal, Message: "reload failed", Err: errors.New("read error")},
			wantMsg: "internal: reload failed (read error)",
		},
		{
			name:    "error without wrapped error",
			err:     &DomainError{Type: ErrorTypeConflict, Message: "no policy file configured"},
			wantMsg: "conflict: no policy file configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_IsAndUnwrap(t *testing.T) {
	sentinel := errors.New("invalid options")
	err := fmt.Errorf("replace default: %w", WrapValidation("default", "invalid policy options", sentinel))

	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, NewDomainError(ErrorTypeValidation, "", nil))
	assert.NotErrorIs(t, err, ErrNoPolicyFile)

	assert.ErrorIs(t, ErrNoPolicyFile, NewDomainError(ErrorTypeConflict, "other", nil))
	assert.False(t, ErrNoPolicyFile.Is(sentinel))
}

func TestDomainError_WithDetail(t *testing.T) {
	err := (&DomainError{Type: ErrorTypeValidation}).WithDetail("field", "asset_path_prefix")
	assert.Equal(t, "asset_path_prefix", err.Details["field"])
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"conflict", ErrNoPolicyFile, ErrorTypeConflict},
		{"unavailable", ErrAuditUnavailable, ErrorTypeUnavailable},
		{"wrapped internal", fmt.Errorf("ctx: %w", WrapInternal("db", errors.New("x"))), ErrorTypeInternal},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
	assert.Nil(t, GetErrorDetails(NewDomainError(ErrorTypeValidation, "no details", nil)))

	err := NewDomainError(ErrorTypeValidation, "bad", nil).WithDetail("limit", "must be at most 500")
	assert.Equal(t, map[string]interface{}{"limit": "must be at most 500"}, GetErrorDetails(err))
}

func TestWrapValidation(t *testing.T) {
	cause := errors.New("invalid policy options: AssetPathPrefix must start with \"/\"")
	err := fmt.Errorf("replace: %w", WrapValidation("default", "invalid policy options", cause))

	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, map[string]interface{}{"default": cause.Error()}, GetErrorDetails(err))

	assert.Nil(t, GetErrorDetails(WrapValidation("default", "no cause", nil)))
}
