package errors

import (
	"errors"
	"net/http"
)

// Kind classifies a failure so the HTTP boundary can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindMethodNotAllowed
	KindConflict
	KindPaymentDeclined
	KindGatewayUnavailable
	KindPublishFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindConflict:
		return "conflict"
	case KindPaymentDeclined:
		return "payment_declined"
	case KindGatewayUnavailable:
		return "gateway_unavailable"
	case KindPublishFailed:
		return "publish_failed"
	default:
		return "internal"
	}
}

// HTTPError represents an error with a kind and a message that is safe to show to clients.
type HTTPError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError with the given kind and message.
func NewHTTPError(kind Kind, message string) *HTTPError {
	return &HTTPError{Kind: kind, Message: message}
}

// Wrap attaches a kind and client message to an underlying cause.
func Wrap(kind Kind, message string, err error) *HTTPError {
	return &HTTPError{Kind: kind, Message: message, Err: err}
}

// Helpers for common errors
var (
	ErrValidation   = func(msg string) *HTTPError { return NewHTTPError(KindValidation, msg) }
	ErrUnauthorized = func(msg string) *HTTPError { return NewHTTPError(KindUnauthorized, msg) }
	ErrForbidden    = func(msg string) *HTTPError { return NewHTTPError(KindForbidden, msg) }
	ErrNotFound     = func(msg string) *HTTPError { return NewHTTPError(KindNotFound, msg) }
	ErrConflict     = func(msg string) *HTTPError { return NewHTTPError(KindConflict, msg) }
)

// KindOf returns the kind carried by err, or KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindInternal
}

// Message returns the client-facing message for err. Unclassified errors never leak their text.
func Message(err error) string {
	var he *HTTPError
	if errors.As(err, &he) && he.Kind != KindInternal {
		return he.Message
	}
	return "Internal server error"
}

// StatusCode maps every kind to exactly one HTTP status.
func StatusCode(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPaymentDeclined:
		return http.StatusPaymentRequired
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	case KindGatewayUnavailable:
		return http.StatusBadGateway
	case KindPublishFailed:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
