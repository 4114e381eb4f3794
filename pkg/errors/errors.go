package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeDoctorNotFound indicates the referenced doctor is not in the pool
	ErrorTypeDoctorNotFound ErrorType = "DOCTOR_NOT_FOUND"

	// ErrorTypeDoctorNotApproved indicates the doctor exists but is not approved
	ErrorTypeDoctorNotApproved ErrorType = "DOCTOR_NOT_APPROVED"

	// ErrorTypeScheduleConflict indicates the requested slot is outside the doctor's availability
	ErrorTypeScheduleConflict ErrorType = "SCHEDULE_CONFLICT"

	// ErrorTypeStaleWrite indicates a conditional update lost against a concurrent writer
	ErrorTypeStaleWrite ErrorType = "STALE_WRITE"

	// ErrorTypeInvalidState indicates the record is not in a state that allows the operation
	ErrorTypeInvalidState ErrorType = "INVALID_STATE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewDoctorNotFoundError reports a doctor id that is absent from the pool
func NewDoctorNotFoundError(doctorID string) *AppError {
	return &AppError{
		Type:    ErrorTypeDoctorNotFound,
		Message: fmt.Sprintf("doctor %s not found", doctorID),
	}
}

// NewDoctorNotApprovedError reports a doctor whose status is not approved
func NewDoctorNotApprovedError(doctorID, status string) *AppError {
	return &AppError{
		Type:    ErrorTypeDoctorNotApproved,
		Message: fmt.Sprintf("doctor %s is %s, not approved", doctorID, status),
	}
}

// NewScheduleConflictError reports a requested time the doctor cannot take
func NewScheduleConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeScheduleConflict,
		Message: message,
	}
}

// NewStaleWriteError reports a lost conditional update
func NewStaleWriteError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeStaleWrite,
		Message: message,
	}
}

// NewInvalidStateError reports an operation attempted from the wrong status
func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidState,
		Message: message,
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's chain contains an AppError of type t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
