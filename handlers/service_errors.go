package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/fetchguard/internal/policy"
	"github.com/upb/fetchguard/services"
	"github.com/upb/fetchguard/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var writeErr error
	switch {
	case utils.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, err.Error(), utils.FieldDetails(err))

	case services.GetErrorType(err) == services.ErrorTypeValidation,
		errors.Is(err, policy.ErrInvalidOptions):
		writeErr = utils.WriteBadRequest(w, err.Error(), services.GetErrorDetails(err))

	case services.GetErrorType(err) == services.ErrorTypeConflict:
		writeErr = utils.WriteError(w, http.StatusConflict, err.Error(), nil)

	case services.GetErrorType(err) == services.ErrorTypeUnavailable:
		writeErr = utils.WriteServiceUnavailable(w, err.Error())

	default:
		logger.Error("internal error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}
