package config

import (
	"slices"
	"time"
)

// defaultAllowedHeaders is the request allow-list used when neither the
// environment nor the config file provides one.
var defaultAllowedHeaders = []string{
	"authorization",
	"content-type",
	"accept",
	"accept-encoding",
	"accept-language",
	"origin",
	"cache-control",
	"x-requested-with",
	"x-api-key",
	"x-auth-token",
}

// DefaultAllowedHeaders returns a copy of the built-in request allow-list.
func DefaultAllowedHeaders() []string {
	return slices.Clone(defaultAllowedHeaders)
}

// ApplyDefaults fills zero-valued fields with their defaults. It is called
// after YAML parsing and environment overlay, before validation.
func ApplyDefaults(cfg *Config) {
	// ── Listen ──
	if cfg.Listen.Host == "" {
		cfg.Listen.Host = "0.0.0.0"
	}
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 8080
	}
	if cfg.Listen.MaxConnections == 0 {
		cfg.Listen.MaxConnections = 1000
	}
	// listen.global_rate_limit defaults to 0 (disabled)
	if cfg.Listen.TrustedProxies == nil {
		cfg.Listen.TrustedProxies = []string{}
	}

	// ── Upstream ──
	if len(cfg.Upstream.AllowedHeaders) == 0 {
		cfg.Upstream.AllowedHeaders = DefaultAllowedHeaders()
	}
	if cfg.Upstream.CustomHeaders == nil {
		cfg.Upstream.CustomHeaders = map[string]string{}
	}
	applyProbeDefaults(&cfg.Upstream.Probe)

	// ── Rate limit ──
	// enabled defaults to false; the limits below are prefilled so that
	// turning the feature on is a one-line change.
	if cfg.RateLimit.PerIP == 0 {
		cfg.RateLimit.PerIP = 200
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 50
	}
	if cfg.RateLimit.CleanupInterval.Duration == 0 {
		cfg.RateLimit.CleanupInterval.Duration = 5 * time.Minute
	}

	// ── Health ──
	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = "/healthz"
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = "/readyz"
	}

	// ── Logging ──
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.Audit.SamplingRate == 0 {
		cfg.Logging.Audit.SamplingRate = 1.0
	}
	if cfg.Logging.Audit.ErrorSamplingRate == 0 {
		cfg.Logging.Audit.ErrorSamplingRate = 1.0
	}

	// ── Shutdown ──
	if cfg.Shutdown.Timeout.Duration == 0 {
		cfg.Shutdown.Timeout.Duration = 30 * time.Second
	}

	// ── Reload ──
	// reload.enabled defaults to false; file watching only makes sense
	// when a config file is in use at all. watch_file must be set
	// explicitly alongside enabled (SIGHUP reload works either way).
	if cfg.Reload.Debounce.Duration == 0 {
		cfg.Reload.Debounce.Duration = 2 * time.Second
	}
}

func applyProbeDefaults(p *ProbeConfig) {
	if p.Interval.Duration == 0 {
		p.Interval.Duration = 30 * time.Second
	}
	if p.Timeout.Duration == 0 {
		p.Timeout.Duration = 5 * time.Second
	}
	if p.Path == "" {
		p.Path = "/"
	}
}
