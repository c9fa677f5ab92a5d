package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeInternal    ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	// ErrNoPolicyFile is returned by a reload when the policy comes from the
	// environment only
	ErrNoPolicyFile = NewDomainError(ErrorTypeConflict, "no policy file configured", nil)

	// ErrAuditUnavailable is returned when block audit storage is not configured
	ErrAuditUnavailable = NewDomainError(ErrorTypeUnavailable, "block audit storage is not configured", nil)
)

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && len(domainErr.Details) > 0 {
		return domainErr.Details
	}
	return nil
}

// WrapValidation wraps an error as a validation error and reports err's
// message under field in the error details
func WrapValidation(field, message string, err error) error {
	domainErr := NewDomainError(ErrorTypeValidation, message, err)
	if err != nil {
		domainErr.WithDetail(field, err.Error())
	}
	return domainErr
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
