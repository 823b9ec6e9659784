// Package config handles environment and YAML configuration parsing,
// defaults, and validation for the passage forwarding proxy.
//
// Configuration has two sources: an optional YAML file for operational
// settings, and the TARGET_URL / ALLOWED_HEADERS / PROXY_DEBUG /
// CUSTOM_HEADERS environment variables for the proxy policy itself.
// Environment variables are applied after file parsing and always win.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for passage.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Health    HealthConfig    `yaml:"health"`
	Logging   LoggingConfig   `yaml:"logging"`
	Shutdown  ShutdownConfig  `yaml:"shutdown"`
	Reload    ReloadConfig    `yaml:"reload"`
}

// ListenConfig defines the listener address and connection limits.
type ListenConfig struct {
	Host            string    `yaml:"host"`
	Port            int       `yaml:"port"`
	MaxConnections  int       `yaml:"max_connections"`
	GlobalRateLimit int       `yaml:"global_rate_limit"` // requests/min across all clients, 0 = off
	TrustedProxies  []string  `yaml:"trusted_proxies"`
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig holds optional TLS certificate paths for the listener.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// UpstreamConfig describes the single target every request is forwarded to.
// All four fields mirror an environment variable (TARGET_URL,
// ALLOWED_HEADERS, CUSTOM_HEADERS, PROXY_DEBUG); the environment overrides
// whatever the file provides.
type UpstreamConfig struct {
	TargetURL      string            `yaml:"target_url"`
	AllowedHeaders []string          `yaml:"allowed_headers"`
	CustomHeaders  map[string]string `yaml:"custom_headers"`
	Debug          bool              `yaml:"debug"`
	Probe          ProbeConfig       `yaml:"probe"`
}

// ProbeConfig controls the optional background upstream reachability probe.
type ProbeConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
	Path     string   `yaml:"path"` // probed path on the target, default "/"
}

// RateLimitConfig defines per-client-IP rate limiting.
type RateLimitConfig struct {
	Enabled         bool     `yaml:"enabled"`
	PerIP           int      `yaml:"per_ip"` // requests/min per client IP
	Burst           int      `yaml:"burst"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// HealthConfig defines the health endpoint paths served by the proxy itself.
type HealthConfig struct {
	LivenessPath  string `yaml:"liveness_path"`
	ReadinessPath string `yaml:"readiness_path"`
}

// LoggingConfig defines log output format and audit sampling.
type LoggingConfig struct {
	Level  string      `yaml:"level"`
	Format string      `yaml:"format"`
	Output string      `yaml:"output"`
	Audit  AuditConfig `yaml:"audit"`
}

// AuditConfig controls audit log sampling rates.
type AuditConfig struct {
	SamplingRate      float64 `yaml:"sampling_rate"`
	ErrorSamplingRate float64 `yaml:"error_sampling_rate"`
}

// ShutdownConfig defines the graceful shutdown timeout.
type ShutdownConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// ReloadConfig controls config hot-reload behavior (SIGHUP and file watching).
// Reloading is only active when a config file is in use; environment-only
// deployments have nothing to watch.
type ReloadConfig struct {
	Enabled   bool     `yaml:"enabled"`
	WatchFile bool     `yaml:"watch_file"` // default true
	Debounce  Duration `yaml:"debounce"`   // default 2s
}

// Duration is a time.Duration that supports YAML string parsing (e.g., "60s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration, parsing strings like "60s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Load builds the runtime configuration. A non-empty path names a YAML file
// to read; an empty path means environment-only operation. In both cases the
// environment variables are applied afterwards, then defaults, then
// validation.
//
// Note that a missing or malformed target URL is NOT a Load error: the
// server must start anyway and answer every request with the configuration
// error body. Target problems surface through ResolveTarget.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
