// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindPreconditionMissing
	KindInvalidInput
	KindNotFound
	KindComputationFailure
	KindConcurrentModification
)

func (k Kind) String() string {
	switch k {
	case KindPreconditionMissing:
		return "precondition_missing"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindComputationFailure:
		return "computation_failure"
	case KindConcurrentModification:
		return "concurrent_modification"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func PreconditionMissing(format string, args ...interface{}) *Error {
	return New(KindPreconditionMissing, format, args...)
}

func InvalidInput(format string, args ...interface{}) *Error {
	return New(KindInvalidInput, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func ComputationFailure(format string, args ...interface{}) *Error {
	return New(KindComputationFailure, format, args...)
}

func ConcurrentModification(format string, args ...interface{}) *Error {
	return New(KindConcurrentModification, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the caller-facing message. Errors without a kind get a generic text.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

func Status(err error) int {
	switch KindOf(err) {
	case KindPreconditionMissing, KindInvalidInput:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConcurrentModification:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
