// Package apperror defines the errors that cross the API boundary of the sub-ledger.
// Each carries a machine-readable code and the HTTP status it maps to.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// 5xx
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// 400
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeMissingScope    = "MISSING_COMPANY"
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodeInvalidPeriod   = "INVALID_PERIOD"

	// 404
	CodeNotFound = "NOT_FOUND"

	// 409, the caller may retry
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// AppError is rendered by the HTTP error middleware as {code, message, details}.
// Err is logged and never sent to clients.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func newError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func NewValidation(message string) *AppError {
	return newError(CodeValidation, http.StatusBadRequest, message)
}

// NewInvalidInput reports a malformed request parameter.
func NewInvalidInput(field, reason string) *AppError {
	return newError(CodeInvalidInput, http.StatusBadRequest, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field)
}

// NewMissingCompany is returned when a read carries no company scope.
func NewMissingCompany() *AppError {
	return newError(CodeMissingScope, http.StatusBadRequest, "company id is required")
}

// NewInvalidQuantity rejects an entry line whose quantity is zero or negative.
func NewInvalidQuantity(entryLineID any, quantity string) *AppError {
	return newError(CodeInvalidQuantity, http.StatusBadRequest, "entry line quantity must be positive").
		WithDetail("entry_line_id", entryLineID).
		WithDetail("quantity", quantity)
}

// NewInvalidPeriod rejects a report period that is missing a bound or reversed.
func NewInvalidPeriod(message string) *AppError {
	return newError(CodeInvalidPeriod, http.StatusBadRequest, message)
}

func NewNotFound(entity string, id any) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewConcurrentModification is returned when a movement slot was taken by a
// concurrent writer.
func NewConcurrentModification(entity string, id any) *AppError {
	return newError(CodeConcurrentModification, http.StatusConflict, "Record was modified concurrently. Retry the operation.").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInternal hides err from the client.
func NewInternal(err error) *AppError {
	return newError(CodeInternal, http.StatusInternalServerError, "Internal server error").WithCause(err)
}

// NewDatabase wraps a storage failure during op.
func NewDatabase(op string, err error) *AppError {
	return newError(CodeDatabase, http.StatusInternalServerError, fmt.Sprintf("database error during %s", op)).WithCause(err)
}

// AsAppError extracts the first AppError in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps any error to a status; non-AppErrors are 500.
func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func IsConcurrentModification(err error) bool {
	return hasCode(err, CodeConcurrentModification)
}

func hasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
