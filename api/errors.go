/*
errors.go - Mapping from engine errors to HTTP responses

STATUS CODES:
  404  employee or leave record not found
  400  invalid interval, invalid input, day-count mismatch, bad transition
  409  overlapping leave (body names the conflicting record), duplicate email
  500  persistence failures and anything unclassified
  503  /healthz when the store does not answer a ping

Every error body is an ErrorResponse {error, code, details}. Conflicts add
conflictingLeave {id, period, type, status}.
*/
package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

const (
	codeInvalidJSON       = "INVALID_JSON"
	codeValidation        = "VALIDATION_FAILED"
	codeInvalidInput      = "INVALID_INPUT"
	codeInvalidInterval   = "INVALID_INTERVAL"
	codeDerivedMismatch   = "DERIVED_MISMATCH"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeNotFound          = "NOT_FOUND"
	codeConflict          = "LEAVE_CONFLICT"
	codeDuplicateEmail    = "DUPLICATE_EMAIL"
	codeInternal          = "INTERNAL_ERROR"
	codeUnavailable       = "STORE_UNAVAILABLE"
)

func writeError(w http.ResponseWriter, status int, message, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// writeServiceError classifies err and writes the matching response.
// Only unclassified errors are logged here; the service has already logged
// rule violations at warn level.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *leave.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, ConflictResponse{
			ErrorResponse: ErrorResponse{Error: err.Error(), Code: codeConflict},
			ConflictingLeave: ConflictingLeaveDTO{
				ID:     conflict.Existing.ID,
				Period: conflict.Existing.Period(),
				Type:   string(conflict.Existing.Type),
				Status: string(conflict.Existing.Status),
			},
		})
		return
	}

	var details any
	var input *leave.InputError
	if errors.As(err, &input) {
		details = FieldErrorDTO{Field: input.Field, Reason: input.Reason}
	}

	switch {
	case errors.Is(err, leave.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error(), codeDuplicateEmail, details)
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), codeNotFound, nil)
	case errors.Is(err, leave.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, err.Error(), codeInvalidInterval, details)
	case errors.Is(err, leave.ErrDerivedMismatch):
		writeError(w, http.StatusBadRequest, err.Error(), codeDerivedMismatch, details)
	case errors.Is(err, leave.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error(), codeInvalidTransition, nil)
	case errors.Is(err, leave.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), codeInvalidInput, details)
	default:
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal, nil)
	}
}
