// Package apperr defines the error taxonomy surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a domain error carrying a stable machine-readable code and the
// HTTP status it maps to.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFound is used both for missing resources and for resources owned by
// another user, so callers cannot probe for existence.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    strings.ToUpper(resource) + "_001",
		Message: fmt.Sprintf("%s with id '%s' not found", resource, id),
		Status:  http.StatusNotFound,
	}
}

func Conflict(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusConflict}
}

// MealSlotConflict reports a second slot for the same (date, meal type).
func MealSlotConflict(date, mealType string) *Error {
	return Conflict("MEALPLAN_002", fmt.Sprintf("a %s slot already exists on %s", mealType, date))
}

func Validation(message string) *Error {
	return &Error{Code: "GENERAL_001", Message: message, Status: http.StatusUnprocessableEntity}
}

func RateLimited(message string) *Error {
	return &Error{Code: "GENERAL_002", Message: message, Status: http.StatusTooManyRequests}
}

func External(message string) *Error {
	return &Error{Code: "RECIPE_003", Message: message, Status: http.StatusServiceUnavailable}
}

func URLExtraction(message string) *Error {
	return &Error{Code: "RECIPE_002", Message: message, Status: http.StatusUnprocessableEntity}
}

func Unauthorized(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusUnauthorized}
}

func InvalidCredentials() *Error {
	return Unauthorized("AUTH_001", "Invalid email or password")
}

func InvalidToken(message string) *Error {
	return Unauthorized("AUTH_002", message)
}

func EmailExists() *Error {
	return &Error{Code: "AUTH_003", Message: "Email already registered", Status: http.StatusConflict}
}

func Internal() *Error {
	return &Error{Code: "GENERAL_000", Message: "Internal server error", Status: http.StatusInternalServerError}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
