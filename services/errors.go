package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind classifies a service failure the way callers need to react to
// it: validation and business-rule failures surface immediately, internal
// failures are safe to retry.
type ErrorKind string

const (
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindPermissionDenied   ErrorKind = "permission-denied"
	KindInvalidArgument    ErrorKind = "invalid-argument"
	KindFailedPrecondition ErrorKind = "failed-precondition"
	KindNotFound           ErrorKind = "not-found"
	KindInternal           ErrorKind = "internal"
)

// HTTPStatus maps a kind to the status the HTTP layer responds with.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return fiber.StatusUnauthorized
	case KindPermissionDenied:
		return fiber.StatusForbidden
	case KindInvalidArgument:
		return fiber.StatusBadRequest
	case KindFailedPrecondition:
		return fiber.StatusPreconditionFailed
	case KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Error is a structured service error.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError tags an unexpected downstream failure as internal unless it is
// already a service error.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return &Error{Kind: KindInternal, Message: message, cause: err}
}

// KindOf extracts the kind from any error; unknown errors are internal.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}
