package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// Validate checks the operational configuration for errors. It collects ALL
// errors rather than stopping at the first one, returning them as a joined
// message.
//
// Target URL problems are deliberately NOT validation errors: the server
// starts regardless and answers every request with the configuration error
// body until the target resolves. See ResolveTarget.
func Validate(cfg *Config) error {
	var errs []string

	// ── Listen ──
	if cfg.Listen.Port < 1 || cfg.Listen.Port > 65535 {
		errs = append(errs, fmt.Sprintf("listen.port must be 1-65535 (got %d)", cfg.Listen.Port))
	}
	if cfg.Listen.MaxConnections < 1 {
		errs = append(errs, fmt.Sprintf("listen.max_connections must be positive (got %d)", cfg.Listen.MaxConnections))
	}
	if cfg.Listen.GlobalRateLimit < 0 {
		errs = append(errs, fmt.Sprintf("listen.global_rate_limit must be 0 (disabled) or positive (got %d)", cfg.Listen.GlobalRateLimit))
	}
	for i, p := range cfg.Listen.TrustedProxies {
		if !isValidProxySpec(p) {
			errs = append(errs, fmt.Sprintf("listen.trusted_proxies[%d]: %q is neither an IP nor a CIDR", i, p))
		}
	}

	// ── TLS files ──
	if cfg.Listen.TLS.CertFile != "" {
		if _, err := os.Stat(cfg.Listen.TLS.CertFile); err != nil {
			errs = append(errs, fmt.Sprintf("listen.tls.cert_file: %v", err))
		}
	}
	if cfg.Listen.TLS.KeyFile != "" {
		if _, err := os.Stat(cfg.Listen.TLS.KeyFile); err != nil {
			errs = append(errs, fmt.Sprintf("listen.tls.key_file: %v", err))
		}
	}
	if (cfg.Listen.TLS.CertFile == "") != (cfg.Listen.TLS.KeyFile == "") {
		errs = append(errs, "listen.tls: cert_file and key_file must be set together")
	}

	// ── Upstream probe ──
	if cfg.Upstream.Probe.Enabled {
		if cfg.Upstream.Probe.Interval.Duration <= 0 {
			errs = append(errs, "upstream.probe.interval must be positive")
		}
		if cfg.Upstream.Probe.Timeout.Duration <= 0 {
			errs = append(errs, "upstream.probe.timeout must be positive")
		}
		if !strings.HasPrefix(cfg.Upstream.Probe.Path, "/") {
			errs = append(errs, fmt.Sprintf("upstream.probe.path must start with / (got %q)", cfg.Upstream.Probe.Path))
		}
	}

	// ── Rate limit ──
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.PerIP < 1 {
			errs = append(errs, fmt.Sprintf("rate_limit.per_ip must be positive (got %d)", cfg.RateLimit.PerIP))
		}
		if cfg.RateLimit.Burst < 1 {
			errs = append(errs, fmt.Sprintf("rate_limit.burst must be positive (got %d)", cfg.RateLimit.Burst))
		}
		if cfg.RateLimit.CleanupInterval.Duration <= 0 {
			errs = append(errs, "rate_limit.cleanup_interval must be positive")
		}
	}

	// ── Health paths ──
	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, fmt.Sprintf("health.liveness_path must start with / (got %q)", cfg.Health.LivenessPath))
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, fmt.Sprintf("health.readiness_path must start with / (got %q)", cfg.Health.ReadinessPath))
	}

	// ── Logging ──
	if !isValidLogLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level must be one of: debug, info, warn, error (got %q)", cfg.Logging.Level))
	}
	if !isValidLogFormat(cfg.Logging.Format) {
		errs = append(errs, fmt.Sprintf("logging.format must be one of: json, text (got %q)", cfg.Logging.Format))
	}
	if !isValidLogOutput(cfg.Logging.Output) {
		errs = append(errs, fmt.Sprintf("logging.output must be one of: stdout, stderr (got %q)", cfg.Logging.Output))
	}
	if cfg.Logging.Audit.SamplingRate < 0 || cfg.Logging.Audit.SamplingRate > 1.0 {
		errs = append(errs, fmt.Sprintf("logging.audit.sampling_rate must be between 0.0 and 1.0 (got %f)", cfg.Logging.Audit.SamplingRate))
	}
	if cfg.Logging.Audit.ErrorSamplingRate < 0 || cfg.Logging.Audit.ErrorSamplingRate > 1.0 {
		errs = append(errs, fmt.Sprintf("logging.audit.error_sampling_rate must be between 0.0 and 1.0 (got %f)", cfg.Logging.Audit.ErrorSamplingRate))
	}

	// ── Shutdown / reload ──
	if cfg.Shutdown.Timeout.Duration <= 0 {
		errs = append(errs, "shutdown.timeout must be positive")
	}
	if cfg.Reload.Debounce.Duration <= 0 {
		errs = append(errs, "reload.debounce must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidProxySpec accepts a plain IP or a CIDR block.
func isValidProxySpec(s string) bool {
	if net.ParseIP(s) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(s)
	return err == nil
}

func isValidLogLevel(l string) bool {
	switch l {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func isValidLogFormat(f string) bool {
	switch f {
	case "json", "text":
		return true
	}
	return false
}

func isValidLogOutput(o string) bool {
	switch o {
	case "stdout", "stderr":
		return true
	}
	return false
}
