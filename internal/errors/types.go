package errors

import (
	"fmt"
)

// ErrorType is the category of a failure in the session engine.
type ErrorType int

const (
	ErrorTypeMalformedRecord ErrorType = iota
	ErrorTypeInvalidInterval
	ErrorTypeAmbiguousHour
	ErrorTypeReferential
	ErrorTypeIO
	ErrorTypeMigration
	ErrorTypeValidation
	ErrorTypeUnknownProject
	ErrorTypeSessionAlreadyActive
	ErrorTypeNoActiveSession
	ErrorTypeNotFound
	ErrorTypeMigrationRequired
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeMalformedRecord:
		return "malformed_record"
	case ErrorTypeInvalidInterval:
		return "invalid_interval"
	case ErrorTypeAmbiguousHour:
		return "ambiguous_hour"
	case ErrorTypeReferential:
		return "referential"
	case ErrorTypeIO:
		return "io"
	case ErrorTypeMigration:
		return "migration"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeUnknownProject:
		return "unknown_project"
	case ErrorTypeSessionAlreadyActive:
		return "session_already_active"
	case ErrorTypeNoActiveSession:
		return "no_active_session"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeMigrationRequired:
		return "migration_required"
	default:
		return "unknown"
	}
}

// AppError is a structured engine error.
type AppError struct {
	Type    ErrorType
	Message string
	Code    string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type.String(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError with the same type and code.
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Type == appErr.Type && e.Code == appErr.Code
	}
	return false
}

func (e *AppError) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetContext retrieves context information from the error
func (e *AppError) GetContext(key string) (interface{}, bool) {
	if e.Context == nil {
		return nil, false
	}
	value, exists := e.Context[key]
	return value, exists
}
