package errors

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProxyErrorWithDetails(t *testing.T) {
	err := &ProxyError{Status: 502, Kind: KindProxy, Message: "Failed to connect to target server", Details: "dial tcp: connection refused"}
	want := "[502] Proxy Error: Failed to connect to target server (dial tcp: connection refused)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestProxyErrorWithoutDetails(t *testing.T) {
	err := &ProxyError{Status: 500, Kind: KindConfig, Message: "TARGET_URL is not set"}
	want := "[500] Configuration Error: TARGET_URL is not set"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestProxyErrorImplementsError(t *testing.T) {
	var _ error = (*ProxyError)(nil)
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError(io.ErrUnexpectedEOF)
	if err.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", err.Status)
	}
	if err.Kind != KindConfig {
		t.Errorf("Kind = %q, want %q", err.Kind, KindConfig)
	}
	if err.Message != io.ErrUnexpectedEOF.Error() {
		t.Errorf("Message = %q, want cause message", err.Message)
	}
}

func TestNewUpstreamError(t *testing.T) {
	err := NewUpstreamError("http://backend.internal:9000", io.EOF)
	if err.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Message != "Failed to connect to target server" {
		t.Errorf("Message = %q, want fixed connect-failure message", err.Message)
	}
	if err.Target != "http://backend.internal:9000" {
		t.Errorf("Target = %q, want the target URL", err.Target)
	}
	if err.Details != "EOF" {
		t.Errorf("Details = %q, want %q", err.Details, "EOF")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    *ProxyError
		status int
		kind   string
	}{
		{"ErrMethodNotAllowed", ErrMethodNotAllowed, 405, KindMethodNotAllowed},
		{"ErrRateLimited", ErrRateLimited, 429, KindRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.kind)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty for predefined errors")
			}
		})
	}
}

func TestAsProxyError(t *testing.T) {
	inner := NewUpstreamError("http://x", io.EOF)
	wrapped := &wrapError{msg: "forwarding request", err: inner}

	got, ok := AsProxyError(wrapped)
	if !ok {
		t.Fatal("AsProxyError should find the wrapped *ProxyError")
	}
	if got != inner {
		t.Error("AsProxyError returned a different error value")
	}

	if _, ok := AsProxyError(io.EOF); ok {
		t.Error("AsProxyError should not match a plain error")
	}
}

type wrapError struct {
	msg string
	err error
}

func (w *wrapError) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapError) Unwrap() error { return w.err }

func TestWriteHTTPErrorConfigShape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTPError(rec, NewConfigError(io.ErrUnexpectedEOF))

	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if raw["error"] != "Configuration Error" {
		t.Errorf("error = %v, want Configuration Error", raw["error"])
	}
	if raw["message"] == "" {
		t.Error("message should not be empty")
	}
	// Config errors carry no target/details fields.
	if _, exists := raw["target"]; exists {
		t.Error("config error body should omit 'target'")
	}
	if _, exists := raw["details"]; exists {
		t.Error("config error body should omit 'details'")
	}
}

func TestWriteHTTPErrorUpstreamShape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTPError(rec, NewUpstreamError("https://api.example.com", io.EOF))

	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if raw["error"] != "Proxy Error" {
		t.Errorf("error = %v, want Proxy Error", raw["error"])
	}
	if raw["message"] != "Failed to connect to target server" {
		t.Errorf("message = %v, want fixed connect-failure message", raw["message"])
	}
	if raw["target"] != "https://api.example.com" {
		t.Errorf("target = %v, want the configured target", raw["target"])
	}
	if raw["details"] != "EOF" {
		t.Errorf("details = %v, want EOF", raw["details"])
	}
}

func TestWriteHTTPErrorStatusOmittedFromBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTPError(rec, ErrRateLimited)

	body := rec.Body.String()
	if strings.Contains(body, "Status") || strings.Contains(body, "\"status\"") {
		t.Errorf("body should not leak the Status field: %s", body)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Code = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}
