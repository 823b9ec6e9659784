package config

import (
	"reflect"
	"testing"
)

func TestApplyEnv_TargetURLOverridesFile(t *testing.T) {
	t.Setenv(EnvTargetURL, "https://api.example.com")

	p := writeTempYAML(t, "upstream:\n  target_url: http://file-value:9000\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upstream.TargetURL != "https://api.example.com" {
		t.Errorf("target_url = %q, want env value", cfg.Upstream.TargetURL)
	}
}

func TestApplyEnv_EmptyTargetKeepsFileValue(t *testing.T) {
	t.Setenv(EnvTargetURL, "")

	p := writeTempYAML(t, "upstream:\n  target_url: http://file-value:9000\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upstream.TargetURL != "http://file-value:9000" {
		t.Errorf("target_url = %q, want file value", cfg.Upstream.TargetURL)
	}
}

func TestApplyEnv_AllowedHeaders(t *testing.T) {
	t.Setenv(EnvAllowedHeaders, "Authorization, X-Custom-Token ,content-type")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"authorization", "x-custom-token", "content-type"}
	if !reflect.DeepEqual(cfg.Upstream.AllowedHeaders, want) {
		t.Errorf("allowed_headers = %v, want %v", cfg.Upstream.AllowedHeaders, want)
	}
}

func TestApplyEnv_BlankAllowedHeadersKeepsDefault(t *testing.T) {
	t.Setenv(EnvAllowedHeaders, "   ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Upstream.AllowedHeaders, DefaultAllowedHeaders()) {
		t.Errorf("allowed_headers = %v, want built-in default", cfg.Upstream.AllowedHeaders)
	}
}

// TestApplyEnv_ProxyDebug checks that only the exact string "true"
// turns debug mode on.
func TestApplyEnv_ProxyDebug(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", false},
		{"True", false},
		{"1", false},
		{"false", false},
		{"banana", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run("value "+tt.value, func(t *testing.T) {
			t.Setenv(EnvProxyDebug, tt.value)

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Upstream.Debug != tt.want {
				t.Errorf("debug = %v for PROXY_DEBUG=%q, want %v", cfg.Upstream.Debug, tt.value, tt.want)
			}
		})
	}
}

func TestApplyEnv_ProxyDebugOverridesFile(t *testing.T) {
	// A set-but-not-"true" variable switches a file-enabled debug off.
	t.Setenv(EnvProxyDebug, "no")

	p := writeTempYAML(t, "upstream:\n  debug: true\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upstream.Debug {
		t.Error("debug should be off when PROXY_DEBUG is set to a non-true value")
	}
}

func TestApplyEnv_CustomHeaders(t *testing.T) {
	t.Setenv(EnvCustomHeaders, `{"X-Served-By":"passage","X-Env":"staging"}`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"X-Served-By": "passage", "X-Env": "staging"}
	if !reflect.DeepEqual(cfg.Upstream.CustomHeaders, want) {
		t.Errorf("custom_headers = %v, want %v", cfg.Upstream.CustomHeaders, want)
	}
}

func TestApplyEnv_MalformedCustomHeadersYieldEmptyMap(t *testing.T) {
	// Malformed JSON never fails the load; it resolves to no custom
	// headers, replacing any file-configured ones.
	t.Setenv(EnvCustomHeaders, `{broken`)

	p := writeTempYAML(t, "upstream:\n  custom_headers:\n    X-From-File: yes\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Upstream.CustomHeaders) != 0 {
		t.Errorf("custom_headers = %v, want empty map", cfg.Upstream.CustomHeaders)
	}
	if cfg.Upstream.CustomHeaders == nil {
		t.Error("custom_headers should be an empty map, not nil")
	}
}

func TestSplitHeaderList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "a,b,c", []string{"a", "b", "c"}},
		{"trims whitespace", " Authorization , Content-Type ", []string{"authorization", "content-type"}},
		{"drops empties", "a,,b,", []string{"a", "b"}},
		{"single entry", "X-Api-Key", []string{"x-api-key"}},
		{"only commas", ",,,", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitHeaderList(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitHeaderList(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCustomHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"valid object", `{"X-A":"1"}`, map[string]string{"X-A": "1"}},
		{"empty object", `{}`, map[string]string{}},
		{"empty string", ``, map[string]string{}},
		{"broken json", `{"X-A":`, map[string]string{}},
		{"array not object", `["X-A"]`, map[string]string{}},
		{"non-string value", `{"X-A":7}`, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCustomHeaders(tt.input)
			if got == nil {
				t.Fatal("ParseCustomHeaders must never return nil")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCustomHeaders(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
