// Package errors provides structured error handling for the lifecycle engine.
package errors

import (
	"fmt"
	"strings"

	"github.com/sheetops/lifecycled/pkg/types"
)

// ErrorCode represents specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"

	// Configuration errors
	ErrCodeConfigError    ErrorCode = "CONFIG_ERROR"
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Registry errors
	ErrCodeRegistryError   ErrorCode = "REGISTRY_ERROR"
	ErrCodeSheetNotFound   ErrorCode = "SHEET_NOT_FOUND"
	ErrCodeRowNotFound     ErrorCode = "ROW_NOT_FOUND"
	ErrCodeAuditWriteError ErrorCode = "AUDIT_WRITE_ERROR"

	// Gateway errors
	ErrCodeGatewayError     ErrorCode = "GATEWAY_ERROR"
	ErrCodeNotifyFailed     ErrorCode = "NOTIFY_FAILED"
	ErrCodeScheduleFailed   ErrorCode = "SCHEDULE_FAILED"
	ErrCodeCalendarNotFound ErrorCode = "CALENDAR_NOT_FOUND"
	ErrCodeRecipientInvalid ErrorCode = "RECIPIENT_INVALID"
	ErrCodeGatewayDisabled  ErrorCode = "GATEWAY_DISABLED"
	ErrCodeGatewayUnreached ErrorCode = "GATEWAY_UNREACHABLE"

	// Lock errors
	ErrCodeLockError ErrorCode = "LOCK_ERROR"
	ErrCodeLockHeld  ErrorCode = "LOCK_HELD"

	// System errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// LifecycleError represents a structured error in the engine
type LifecycleError struct {
	Type    types.ErrorType        `json:"type"`
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LifecycleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *LifecycleError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *LifecycleError) WithDetail(key string, value interface{}) *LifecycleError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new lifecycle error
func New(errType types.ErrorType, code ErrorCode, message string) *LifecycleError {
	return &LifecycleError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// NewWithCause creates a new lifecycle error with a cause
func NewWithCause(errType types.ErrorType, code ErrorCode, message string, cause error) *LifecycleError {
	return &LifecycleError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Validation error constructors
func NewValidationError(message string) *LifecycleError {
	return New(types.ErrorTypeValidation, ErrCodeValidation, message)
}

func NewInvalidInputError(message string) *LifecycleError {
	return New(types.ErrorTypeValidation, ErrCodeInvalidInput, message)
}

func NewMissingFieldError(field string) *LifecycleError {
	return New(types.ErrorTypeValidation, ErrCodeMissingField,
		fmt.Sprintf("missing required field: %s", field)).WithDetail("field", field)
}

// Configuration error constructors. Missing configuration is fatal to the
// calling operation: every lifecycle decision depends on it.
func NewConfigError(message string) *LifecycleError {
	return New(types.ErrorTypeValidation, ErrCodeConfigError, message)
}

func NewConfigSheetMissingError() *LifecycleError {
	return New(types.ErrorTypeNotFound, ErrCodeConfigNotFound,
		fmt.Sprintf("configuration sheet %q not found", types.SheetConfig))
}

func NewConfigInvalidError(message string) *LifecycleError {
	return New(types.ErrorTypeValidation, ErrCodeConfigInvalid, message)
}

// Registry error constructors
func NewRegistryError(message string, cause error) *LifecycleError {
	return NewWithCause(types.ErrorTypeInternal, ErrCodeRegistryError, message, cause)
}

func NewSheetNotFoundError(sheet string) *LifecycleError {
	return New(types.ErrorTypeNotFound, ErrCodeSheetNotFound,
		fmt.Sprintf("sheet %q not found", sheet)).WithDetail("sheet", sheet)
}

func NewRowNotFoundError(row int) *LifecycleError {
	return New(types.ErrorTypeNotFound, ErrCodeRowNotFound,
		fmt.Sprintf("row %d not found", row)).WithDetail("row", row)
}

func NewAuditWriteError(cause error) *LifecycleError {
	return NewWithCause(types.ErrorTypeInternal, ErrCodeAuditWriteError,
		"failed to append audit event", cause)
}

// Gateway error constructors. Gateways convert these to boolean results at
// the boundary; they exist for diagnostics, never for control flow in the
// dispatcher.
func NewGatewayError(gateway, message string, cause error) *LifecycleError {
	return NewWithCause(types.ErrorTypeExternal, ErrCodeGatewayError, message, cause).
		WithDetail("gateway", gateway)
}

func NewRecipientInvalidError(address string) *LifecycleError {
	return New(types.ErrorTypeValidation, ErrCodeRecipientInvalid,
		fmt.Sprintf("notification recipient %q is not a valid address", address))
}

func NewCalendarNotFoundError(calendarID string) *LifecycleError {
	return New(types.ErrorTypeNotFound, ErrCodeCalendarNotFound,
		fmt.Sprintf("calendar %q does not resolve to an existing resource", calendarID)).
		WithDetail("calendar_id", calendarID)
}

// Lock error constructors
func NewLockError(name string, cause error) *LifecycleError {
	return NewWithCause(types.ErrorTypeInternal, ErrCodeLockError,
		fmt.Sprintf("run lock %q failed", name), cause).WithDetail("lock", name)
}

// System error constructors
func NewInternalError(message string) *LifecycleError {
	return New(types.ErrorTypeInternal, ErrCodeInternal, message)
}

func NewInternalErrorWithCause(message string, cause error) *LifecycleError {
	return NewWithCause(types.ErrorTypeInternal, ErrCodeInternal, message, cause)
}

func NewUnauthorizedError(message string) *LifecycleError {
	return New(types.ErrorTypeUnauthorized, ErrCodeUnauthorized, message)
}

// IsLifecycleError checks if an error is a LifecycleError
func IsLifecycleError(err error) bool {
	_, ok := err.(*LifecycleError)
	return ok
}

// GetLifecycleError extracts a LifecycleError from an error
func GetLifecycleError(err error) *LifecycleError {
	if lcErr, ok := err.(*LifecycleError); ok {
		return lcErr
	}
	return nil
}

// IsNotFound reports whether the error carries a not-found type
func IsNotFound(err error) bool {
	lcErr := GetLifecycleError(err)
	return lcErr != nil && lcErr.Type == types.ErrorTypeNotFound
}

// WrapError wraps an error as a LifecycleError
func WrapError(err error, errType types.ErrorType, code ErrorCode, message string) *LifecycleError {
	return NewWithCause(errType, code, message, err)
}

// ErrorList represents a list of errors
type ErrorList struct {
	Errors []*LifecycleError `json:"errors"`
}

// Error implements the error interface
func (el *ErrorList) Error() string {
	var messages []string
	for _, err := range el.Errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Add adds an error to the list
func (el *ErrorList) Add(err *LifecycleError) {
	el.Errors = append(el.Errors, err)
}

// HasErrors returns true if there are errors
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// ToError returns the ErrorList as an error if it has errors, otherwise nil
func (el *ErrorList) ToError() error {
	if el.HasErrors() {
		return el
	}
	return nil
}

// NewErrorList creates a new error list
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*LifecycleError, 0),
	}
}
