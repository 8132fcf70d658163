package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures
type Kind string

const (
	KindUnauthorized  Kind = "unauthorized"
	KindHTTPStatus    Kind = "http_status"
	KindDecoding      Kind = "decoding_failed"
	KindTransport     Kind = "transport_failure"
	KindConfiguration Kind = "configuration"
)

// Error is the typed failure every gateway call returns
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		if e.Message != "" {
			return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("http status %d", e.StatusCode)
	case KindUnauthorized:
		return "unauthorized: session expired"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized signals an expired or rejected session
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, StatusCode: 401}
}

// HTTPStatus signals a non-2xx response other than 401
func HTTPStatus(code int, message string) *Error {
	return &Error{Kind: KindHTTPStatus, StatusCode: code, Message: message}
}

// Decoding signals a payload that matched no known shape
func Decoding(err error) *Error {
	return &Error{Kind: KindDecoding, Err: err}
}

// Transport signals a network or connectivity failure
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

// Configuration signals a local precondition failure such as a missing base URL
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// KindOf returns the kind of a gateway error anywhere in err's chain
func KindOf(err error) (Kind, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind, true
	}
	return "", false
}

// StatusCodeOf returns the HTTP status carried by err, or 0
func StatusCodeOf(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode
	}
	return 0
}

// UserMessage returns the text a view shows for err
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	kind, ok := KindOf(err)
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch kind {
	case KindUnauthorized:
		return "Your session has expired. Please sign in again."
	case KindTransport:
		return "Unable to reach the server. Check your connection and try again."
	case KindConfiguration:
		return "The trips service is not configured."
	default:
		return "Something went wrong. Please try again."
	}
}
