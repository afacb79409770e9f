package errors

import (
	"errors"
	"fmt"
)

// NewMalformedRecordError reports a stored row that could not be decoded.
func NewMalformedRecordError(reason string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeMalformedRecord,
		Message: reason,
		Code:    "MALFORMED_RECORD",
		Cause:   cause,
		Context: map[string]interface{}{"reason": reason},
	}
}

// NewInvalidIntervalError reports an interval whose end is not after its start.
func NewInvalidIntervalError(start, end interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidInterval,
		Message: fmt.Sprintf("end %v is not after start %v", end, start),
		Code:    "INVALID_INTERVAL",
		Context: map[string]interface{}{
			"start": start,
			"end":   end,
		},
	}
}

// NewAmbiguousHourError flags a legacy time-of-day whose "12" hour may mean midnight.
func NewAmbiguousHourError(date, startTOD, endTOD string) *AppError {
	return &AppError{
		Type:    ErrorTypeAmbiguousHour,
		Message: fmt.Sprintf("hour 12 in %s %s-%s may mean noon or midnight, needs manual review", date, startTOD, endTOD),
		Code:    "AMBIGUOUS_HOUR",
		Context: map[string]interface{}{
			"date":  date,
			"start": startTOD,
			"end":   endTOD,
		},
	}
}

// NewReferentialError reports a dangling reference from a session.
func NewReferentialError(field, id, reason string) *AppError {
	return &AppError{
		Type:    ErrorTypeReferential,
		Message: fmt.Sprintf("%s %q: %s", field, id, reason),
		Code:    "REFERENTIAL_ERROR",
		Context: map[string]interface{}{
			"field":  field,
			"id":     id,
			"reason": reason,
		},
	}
}

// NewIOError wraps a filesystem failure.
func NewIOError(operation, path string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeIO,
		Message: fmt.Sprintf("%s %s", operation, path),
		Code:    "IO_ERROR",
		Cause:   cause,
		Context: map[string]interface{}{
			"operation": operation,
			"path":      path,
		},
	}
}

// NewMigrationError reports a record-level migration failure.
func NewMigrationError(recordID string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeMigration,
		Message: fmt.Sprintf("record %s could not be migrated", recordID),
		Code:    "MIGRATION_ERROR",
		Cause:   cause,
		Context: map[string]interface{}{"record": recordID},
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    "VALIDATION_FAILED",
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

func NewUnknownProjectError(projectID string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnknownProject,
		Message: fmt.Sprintf("project %q does not exist", projectID),
		Code:    "UNKNOWN_PROJECT",
		Context: map[string]interface{}{"project": projectID},
	}
}

func NewSessionAlreadyActiveError(sessionID string) *AppError {
	return &AppError{
		Type:    ErrorTypeSessionAlreadyActive,
		Message: fmt.Sprintf("session %s is still running", sessionID),
		Code:    "SESSION_ALREADY_ACTIVE",
		Context: map[string]interface{}{"session": sessionID},
	}
}

func NewNoActiveSessionError() *AppError {
	return &AppError{
		Type:    ErrorTypeNoActiveSession,
		Message: "no session is running",
		Code:    "NO_ACTIVE_SESSION",
		Context: make(map[string]interface{}),
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string, identifier string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
		Code:    "NOT_FOUND",
		Context: map[string]interface{}{
			"resource":   resource,
			"identifier": identifier,
		},
	}
}

// NewMigrationRequiredError rejects writes into a year unit still in the legacy schema.
func NewMigrationRequiredError(year int) *AppError {
	return &AppError{
		Type:    ErrorTypeMigrationRequired,
		Message: fmt.Sprintf("year %d is stored in the legacy schema, run migrate first", year),
		Code:    "MIGRATION_REQUIRED",
		Context: map[string]interface{}{"year": year},
	}
}

// WrapError wraps an existing error with additional context
func WrapError(err error, errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Code:    errorType.String(),
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrorType checks if the error is of the specified type
func IsErrorType(err error, errorType ErrorType) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.IsType(errorType)
	}
	return false
}

// GetErrorCode returns the error code for the error
func GetErrorCode(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// IsUserError reports failures caused by input rather than by the system.
func IsUserError(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Type {
	case ErrorTypeIO, ErrorTypeMigration:
		return false
	default:
		return true
	}
}
