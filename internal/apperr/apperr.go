// Package apperr defines the closed set of failure kinds the service can
// report to clients, plus their HTTP status and wire-code mapping. Every
// recognized failure is an *Error; anything else collapses to an internal
// error at the response boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. The zero value is KindInternal so that an
// unclassified error never leaks a more specific status than 500.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindJWT
	KindTokenExpired
	KindTokenRefresh
	KindForbidden
)

// Error is a tagged failure carrying an optional wrapped cause for
// server-side diagnostics. The cause is never serialized outside of a
// development deployment.
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

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func JWT(message string, cause error) *Error {
	return &Error{Kind: KindJWT, Message: message, Err: cause}
}

// TokenExpired signals the client should attempt a refresh rather than a
// full re-login.
func TokenExpired(message string, cause error) *Error {
	if message == "" {
		message = "token has expired"
	}
	return &Error{Kind: KindTokenExpired, Message: message, Err: cause}
}

func TokenRefresh(message string, cause error) *Error {
	return &Error{Kind: KindTokenRefresh, Message: message, Err: cause}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// From extracts the *Error from err's chain, or wraps err as an internal
// error with a generic client-facing message.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// HTTPStatus maps a kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized, KindJWT, KindTokenExpired, KindTokenRefresh:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Code maps a kind to the wire code clients branch on.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindJWT:
		return "JWT_ERROR"
	case KindTokenExpired:
		return "TOKEN_EXPIRED"
	case KindTokenRefresh:
		return "TOKEN_REFRESH_ERROR"
	case KindForbidden:
		return "FORBIDDEN"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ShouldRefresh reports whether the client should retry through the refresh
// endpoint instead of forcing a re-login.
func (k Kind) ShouldRefresh() bool {
	return k == KindTokenExpired
}
