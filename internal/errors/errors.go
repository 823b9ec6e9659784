// Package errors defines the client-visible error responses of the proxy.
// Every error carries the HTTP status to answer with and the fields that
// marshal into the flat JSON body clients receive.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error kinds as they appear in the "error" field of response bodies.
const (
	KindConfig           = "Configuration Error"
	KindProxy            = "Proxy Error"
	KindMethodNotAllowed = "Method Not Allowed"
	KindRateLimited      = "Rate Limited"
)

// ProxyError is the base error type for all client-visible proxy errors.
// Status selects the HTTP response code; the remaining fields marshal
// directly into the JSON response body.
type ProxyError struct {
	Status  int    `json:"-"`
	Kind    string `json:"error"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s (%s)", e.Status, e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Status, e.Kind, e.Message)
}

// NewConfigError wraps a configuration resolution failure. Served as 500
// on every request while the configuration remains unresolvable.
func NewConfigError(cause error) *ProxyError {
	return &ProxyError{
		Status:  http.StatusInternalServerError,
		Kind:    KindConfig,
		Message: cause.Error(),
	}
}

// NewUpstreamError wraps a transport-level failure reaching the target.
// The message is fixed; the cause travels in the details field.
func NewUpstreamError(target string, cause error) *ProxyError {
	return &ProxyError{
		Status:  http.StatusBadGateway,
		Kind:    KindProxy,
		Message: "Failed to connect to target server",
		Target:  target,
		Details: cause.Error(),
	}
}

// Predefined errors for non-proxied responses.
var (
	ErrMethodNotAllowed = &ProxyError{Status: http.StatusMethodNotAllowed, Kind: KindMethodNotAllowed, Message: "Method is not supported by this proxy"}
	ErrRateLimited      = &ProxyError{Status: http.StatusTooManyRequests, Kind: KindRateLimited, Message: "Request rate limit exceeded, retry later"}
)

// AsProxyError extracts a *ProxyError from err's chain, if present.
func AsProxyError(err error) (*ProxyError, bool) {
	var pe *ProxyError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
