// Package apperr classifies engine failures so callers can decide whether a
// request is safe to retry and which status to report to a client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the classification of an engine error.
type Kind int

const (
	// Internal is anything that is not classified below.
	Internal Kind = iota
	// InvalidRequest fails validation before any side effect occurs.
	InvalidRequest
	// PortConflict means a requested host port is held by a service or the OS.
	PortConflict
	// NoPortAvailable means the upward scan reached the end of the port range.
	NoPortAvailable
	// ImageNotAllowed means the image reference is not on the allow-list.
	ImageNotAllowed
	// RuntimeError wraps any failure reported by the container runtime.
	RuntimeError
	// UnsupportedFormat means a project archive has an unknown extension.
	UnsupportedFormat
	// NotFound means the service id is unknown.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "InvalidRequest"
	case PortConflict:
		return "PortConflict"
	case NoPortAvailable:
		return "NoPortAvailable"
	case ImageNotAllowed:
		return "ImageNotAllowed"
	case RuntimeError:
		return "RuntimeError"
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case NotFound:
		return "NotFound"
	default:
		return "Internal"
	}
}

// Error is an error tagged with its Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. The message of err is kept verbatim so runtime
// failures reach the operator unchanged.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of the first *Error in the chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// HTTPStatus maps a Kind to the status code the API layer responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidRequest, UnsupportedFormat:
		return http.StatusBadRequest
	case ImageNotAllowed:
		return http.StatusForbidden
	case PortConflict:
		return http.StatusConflict
	case NoPortAvailable:
		return http.StatusServiceUnavailable
	case NotFound:
		return http.StatusNotFound
	case RuntimeError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
