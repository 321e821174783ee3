package utils

import (
	"fmt"
	"net/url"
	"time"
)

// UserError represents an error with a user-friendly message and solution
type UserError struct {
	Message  string
	Solution string
	Err      error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Solution != "" {
		msg += fmt.Sprintf("\n\n💡 Solution: %s", e.Solution)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new UserError
func NewUserError(message, solution string, err error) *UserError {
	return &UserError{
		Message:  message,
		Solution: solution,
		Err:      err,
	}
}

// ValidationError reports a bad configuration value
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ValidateBaseURL checks that value is an absolute http(s) URL.
func ValidateBaseURL(field, value string) error {
	if value == "" {
		return NewValidationError(field, "cannot be empty")
	}
	u, err := url.Parse(value)
	if err != nil {
		return NewValidationError(field, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError(field, fmt.Sprintf("unsupported scheme %q, use http or https", u.Scheme))
	}
	if u.Host == "" {
		return NewValidationError(field, "missing host")
	}
	return nil
}

// ValidatePositive checks that a duration setting is greater than zero.
func ValidatePositive(field string, d time.Duration) error {
	if d <= 0 {
		return NewValidationError(field, fmt.Sprintf("must be positive, got %s", d))
	}
	return nil
}
