// Package gogsapi issues authenticated requests against the Gogs REST API.
//
// The Client serializes JSON bodies, applies HTTP basic authentication and a
// per-request timeout, and returns every response as an Outcome regardless of
// its status code. Only connection-level failures surface as TransportError;
// callers decide which status codes are acceptable and report the rest with
// UnexpectedStatusError, which carries a request echo with secrets masked.
//
// Request lifecycle events are published to a RequestEventObserver and, when
// configured, counted in Prometheus metrics.
package gogsapi
