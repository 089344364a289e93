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

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeMalformedCompositeCode indicates a composite code whose segments
	// do not line up with its family's tag order
	ErrorTypeMalformedCompositeCode ErrorType = "MALFORMED_COMPOSITE_CODE"

	// ErrorTypeDateRangeInvalid indicates an availability window that cannot
	// produce any slot
	ErrorTypeDateRangeInvalid ErrorType = "DATE_RANGE_INVALID"

	// ErrorTypeIntegration indicates an upstream ERP call failed after the
	// allowed retries
	ErrorTypeIntegration ErrorType = "INTEGRATION"

	// ErrorTypeScheduleConflict indicates the ERP reported the slot as taken
	ErrorTypeScheduleConflict ErrorType = "SCHEDULE_CONFLICT"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error

	// IntegrationID and StatusCode are only set for upstream errors.
	IntegrationID string
	StatusCode    int
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

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewMalformedCompositeCodeError creates an error for a code that cannot be
// decoded by the given family
func NewMalformedCompositeCodeError(family, code string, expectedSegments, gotSegments int) *AppError {
	return &AppError{
		Type: ErrorTypeMalformedCompositeCode,
		Message: fmt.Sprintf("%s code %q has %d segments, expected %d",
			family, code, gotSegments, expectedSegments),
	}
}

// NewDateRangeInvalidError creates a new date range error
func NewDateRangeInvalidError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeDateRangeInvalid,
		Message: message,
	}
}

// NewIntegrationError creates an error for a failed upstream ERP call
func NewIntegrationError(integrationID, message string, statusCode int, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeIntegration,
		Message:       message,
		Err:           err,
		IntegrationID: integrationID,
		StatusCode:    statusCode,
	}
}

// NewScheduleConflictError creates an error for a slot the ERP no longer offers
func NewScheduleConflictError(integrationID, message string) *AppError {
	return &AppError{
		Type:          ErrorTypeScheduleConflict,
		Message:       message,
		IntegrationID: integrationID,
		StatusCode:    409,
	}
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == t {
			return true
		}
		err = appErr.Err
	}
	return false
}

// IsScheduleConflict reports whether err is a ScheduleConflict
func IsScheduleConflict(err error) bool {
	return IsType(err, ErrorTypeScheduleConflict)
}

// IsIntegrationError reports whether err is an IntegrationError
func IsIntegrationError(err error) bool {
	return IsType(err, ErrorTypeIntegration)
}

// IsMalformedCompositeCode reports whether err is a MalformedCompositeCode error
func IsMalformedCompositeCode(err error) bool {
	return IsType(err, ErrorTypeMalformedCompositeCode)
}

// IsDateRangeInvalid reports whether err is a DateRangeInvalid error
func IsDateRangeInvalid(err error) bool {
	return IsType(err, ErrorTypeDateRangeInvalid)
}
