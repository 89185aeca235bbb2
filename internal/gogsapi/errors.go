package gogsapi

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	transportErrorTemplateConstant          = "%s transport failure for %s %s: %v"
	malformedResponseErrorTemplateConstant  = "%s returned a malformed response body (status %d): %v"
	unexpectedStatusErrorTemplateConstant   = "%s: unexpected status %d: %s (request: %s)"
	unexpectedStatusSummaryTemplateConstant = "%s: %s"
)

// TransportError reports connection-level failures such as DNS errors, refused connections, or timeouts.
type TransportError struct {
	Operation OperationName
	Method    Method
	Path      string
	Cause     error
}

// Error describes the transport failure.
func (transportError TransportError) Error() string {
	return fmt.Sprintf(transportErrorTemplateConstant, transportError.Operation, transportError.Method, transportError.Path, transportError.Cause)
}

// Unwrap exposes the underlying cause.
func (transportError TransportError) Unwrap() error {
	return transportError.Cause
}

// MalformedResponseError reports a successful status whose body could not be decoded as JSON.
type MalformedResponseError struct {
	Operation  OperationName
	StatusCode int
	Cause      error
}

// Error describes the decoding failure.
func (malformedError MalformedResponseError) Error() string {
	return fmt.Sprintf(malformedResponseErrorTemplateConstant, malformedError.Operation, malformedError.StatusCode, malformedError.Cause)
}

// Unwrap exposes the underlying cause.
func (malformedError MalformedResponseError) Unwrap() error {
	return malformedError.Cause
}

// UnexpectedStatusError reports a response whose status the caller did not expect for the operation.
type UnexpectedStatusError struct {
	Operation     OperationName
	StatusCode    int
	Summary       string
	ServerMessage string
	Request       RequestEcho
}

// NewUnexpectedStatusError captures the outcome status and server message together with a redacted request echo.
func NewUnexpectedStatusError(request Request, outcome Outcome, summary string) UnexpectedStatusError {
	return UnexpectedStatusError{
		Operation:     request.Operation,
		StatusCode:    outcome.StatusCode,
		Summary:       strings.TrimSpace(summary),
		ServerMessage: outcome.ServerMessage(),
		Request:       NewRequestEcho(request),
	}
}

// Error describes the unexpected status.
func (statusError UnexpectedStatusError) Error() string {
	description := statusError.ServerMessage
	if len(statusError.Summary) > 0 {
		description = fmt.Sprintf(unexpectedStatusSummaryTemplateConstant, statusError.Summary, statusError.ServerMessage)
	}
	return fmt.Sprintf(unexpectedStatusErrorTemplateConstant, statusError.Operation, statusError.StatusCode, description, statusError.Request.String())
}

// NotFound reports whether the server answered 404.
func (statusError UnexpectedStatusError) NotFound() bool {
	return statusError.StatusCode == http.StatusNotFound
}
