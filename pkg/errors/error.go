package errors

import (
	"errors"
	"fmt"
)

// Re-export the standard helpers so callers only import one errors package.
var (
	New    = errors.New
	Unwrap = errors.Unwrap
	Is     = errors.Is
	As     = errors.As
)

// Error extends the basic error interface with a stable code.
type Error interface {
	error
	Code() string
	Unwrap() error
}

// AppError is the default Error implementation. The retriable flag marks
// transient failures that the caller may repeat with the same inputs.
type AppError struct {
	code      string
	message   string
	err       error
	retriable bool
}

func (e *AppError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.message, e.err.Error())
	}
	return e.message
}

func (e *AppError) Code() string {
	return e.code
}

func (e *AppError) Unwrap() error {
	return e.err
}

func (e *AppError) Retriable() bool {
	return e.retriable
}

// NewAppError creates a new application error.
func NewAppError(code string, message string, err error) *AppError {
	return &AppError{
		code:    code,
		message: message,
		err:     err,
	}
}

// NewRetriable creates an application error that is safe to retry.
func NewRetriable(code string, message string, err error) *AppError {
	return &AppError{
		code:      code,
		message:   message,
		err:       err,
		retriable: true,
	}
}

// CodeOf returns the code carried by err, or ErrInternal for plain errors.
func CodeOf(err error) string {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code()
	}
	return ErrInternal
}

// IsRetriable reports whether err (or any wrapped error) is marked retriable.
func IsRetriable(err error) bool {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Retriable()
	}
	return false
}
