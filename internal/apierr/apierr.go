// Package apierr is the failure shape returned by every outbound API client.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

const (
	CodeAPIError        = "API_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeTimeout         = "TIMEOUT"
	CodeConnection      = "CONNECTION_ERROR"
	CodeInvalidResponse = "INVALID_RESPONSE"
	CodeNotConfigured   = "NOT_CONFIGURED"
)

// Error is a downstream failure. Status is zero when no HTTP response arrived.
type Error struct {
	Service string `json:"-"`
	Code    string `json:"code"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (%d): %s", e.Service, e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Service, e.Code, e.Message)
}

// FromStatus builds an error for a non-success HTTP status.
func FromStatus(service string, status int, body string) *Error {
	code := CodeAPIError
	switch status {
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusConflict:
		code = CodeConflict
	}
	return &Error{Service: service, Code: code, Status: status, Message: body}
}

// FromTransport classifies an error returned by http.Client.Do.
func FromTransport(service string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Service: service, Code: CodeTimeout, Message: err.Error()}
	}
	return &Error{Service: service, Code: CodeConnection, Message: err.Error()}
}

// Invalid reports a response that could not be decoded.
func Invalid(service string, err error) *Error {
	return &Error{Service: service, Code: CodeInvalidResponse, Message: err.Error()}
}

// CodeOf extracts the code of an *Error anywhere in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if err != nil {
		return CodeAPIError
	}
	return ""
}

// As returns err as an *Error, wrapping foreign errors as API_ERROR.
func As(service string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Service: service, Code: CodeAPIError, Message: err.Error()}
}
