package config

import (
	"encoding/json"
	"os"
	"strings"
)

// Environment variables recognized by the proxy. They are read once per
// Load (startup or reload) and override the corresponding file fields.
const (
	EnvTargetURL      = "TARGET_URL"
	EnvAllowedHeaders = "ALLOWED_HEADERS"
	EnvProxyDebug     = "PROXY_DEBUG"
	EnvCustomHeaders  = "CUSTOM_HEADERS"
)

// ApplyEnv overlays the recognized environment variables onto cfg.
// Empty values are treated as absent, except PROXY_DEBUG where any set
// value is authoritative.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvTargetURL); v != "" {
		cfg.Upstream.TargetURL = v
	}

	if v := os.Getenv(EnvAllowedHeaders); strings.TrimSpace(v) != "" {
		cfg.Upstream.AllowedHeaders = SplitHeaderList(v)
	}

	if v, ok := os.LookupEnv(EnvProxyDebug); ok {
		cfg.Upstream.Debug = v == "true"
	}

	if v, ok := os.LookupEnv(EnvCustomHeaders); ok {
		cfg.Upstream.CustomHeaders = ParseCustomHeaders(v)
	}
}

// SplitHeaderList parses a comma-separated header name list into trimmed,
// lower-cased entries. Empty entries are dropped.
func SplitHeaderList(s string) []string {
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// ParseCustomHeaders parses a JSON object of header name to value. Any
// parse failure, or a JSON value that is not a flat string-to-string
// object, silently yields an empty mapping; custom header problems are
// never surfaced as errors.
func ParseCustomHeaders(s string) map[string]string {
	headers := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return headers
	}
	if err := json.Unmarshal([]byte(s), &headers); err != nil {
		return map[string]string{}
	}
	return headers
}
