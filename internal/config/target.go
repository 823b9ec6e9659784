package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrTargetMissing indicates that no target URL was configured at all.
var ErrTargetMissing = errors.New("TARGET_URL is not set")

// InvalidTargetError indicates that a target URL was configured but is not
// a syntactically valid absolute http or https URL.
type InvalidTargetError struct {
	Raw string
	Err error
}

// Error implements the error interface.
func (e *InvalidTargetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid target URL %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("invalid target URL %q: must be an absolute http or https URL", e.Raw)
}

// Unwrap returns the underlying parse error, if any.
func (e *InvalidTargetError) Unwrap() error { return e.Err }

// Target is the resolved, immutable upstream view consumed per request.
// It is built once per configuration load and shared read-only by all
// request goroutines; a reload produces a fresh Target, never a mutation.
type Target struct {
	URL    *url.URL
	Raw    string // the configured target string, verbatim, for error bodies
	Origin string // scheme://host[:port]
	Host   string

	AllowedHeaders map[string]struct{} // lower-cased names
	CustomHeaders  map[string]string
	Debug          bool
}

// ResolveTarget parses and freezes the upstream settings. It returns
// ErrTargetMissing when no target is configured and an *InvalidTargetError
// when the configured value is not an absolute http(s) URL.
func (c *Config) ResolveTarget() (*Target, error) {
	raw := strings.TrimSpace(c.Upstream.TargetURL)
	if raw == "" {
		return nil, ErrTargetMissing
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &InvalidTargetError{Raw: raw, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &InvalidTargetError{Raw: raw}
	}
	if u.Host == "" {
		return nil, &InvalidTargetError{Raw: raw}
	}

	allowed := make(map[string]struct{}, len(c.Upstream.AllowedHeaders))
	for _, name := range c.Upstream.AllowedHeaders {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		allowed[name] = struct{}{}
	}

	custom := make(map[string]string, len(c.Upstream.CustomHeaders))
	for name, value := range c.Upstream.CustomHeaders {
		custom[name] = value
	}

	return &Target{
		URL:            u,
		Raw:            raw,
		Origin:         u.Scheme + "://" + u.Host,
		Host:           u.Host,
		AllowedHeaders: allowed,
		CustomHeaders:  custom,
		Debug:          c.Upstream.Debug,
	}, nil
}

// AllowsHeader reports whether the lower-cased header name is in the
// allow-list.
func (t *Target) AllowsHeader(name string) bool {
	_, ok := t.AllowedHeaders[strings.ToLower(name)]
	return ok
}
