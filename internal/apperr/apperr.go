// Package apperr defines the coded application errors surfaced to the web layer.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a class of application error.
type Code string

const (
	Validation      Code = "VALIDATION_ERROR"
	GeocodeNotFound Code = "GEOCODE_NOT_FOUND"
	ImageDecode     Code = "IMAGE_DECODE_ERROR"
	Storage         Code = "STORAGE_ERROR"
	NotFound        Code = "NOT_FOUND"
)

// AppError carries a code, a user-facing message and the underlying cause.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Is reports whether any error in err's chain is an AppError with the given code.
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Message returns the user-facing message of err, or fallback when err is not an AppError.
func Message(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
