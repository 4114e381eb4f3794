package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// statusForError maps an application error type to an HTTP status
func statusForError(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeNotFound, apperrors.ErrorTypeDoctorNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeScheduleConflict, apperrors.ErrorTypeDoctorNotApproved:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeStaleWrite, apperrors.ErrorTypeInvalidState, apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithAppError writes err with the status for its AppError type.
// Internal details are logged, not returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := statusForError(appErr.Type)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondWithJSON(w, status, map[string]string{
		"error": appErr.Message,
		"code":  string(appErr.Type),
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
