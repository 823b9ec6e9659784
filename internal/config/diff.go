package config

import "reflect"

// Change describes a single configuration field that differs between two configs.
type Change struct {
	Field      string      // dot-separated field path (e.g., "upstream.target_url")
	OldValue   interface{} // previous value
	NewValue   interface{} // new value
	Reloadable bool        // whether this change can be applied without restart
}

// Diff compares two Config values and returns a list of changes.
// Each change is annotated with whether it is reloadable at runtime.
func Diff(old, new *Config) []Change {
	var changes []Change

	// ── Non-reloadable: listen ──
	diffField(&changes, "listen.host", old.Listen.Host, new.Listen.Host, false)
	diffField(&changes, "listen.port", old.Listen.Port, new.Listen.Port, false)
	diffField(&changes, "listen.max_connections", old.Listen.MaxConnections, new.Listen.MaxConnections, false)
	diffField(&changes, "listen.global_rate_limit", old.Listen.GlobalRateLimit, new.Listen.GlobalRateLimit, false)
	diffField(&changes, "listen.tls.cert_file", old.Listen.TLS.CertFile, new.Listen.TLS.CertFile, false)
	diffField(&changes, "listen.tls.key_file", old.Listen.TLS.KeyFile, new.Listen.TLS.KeyFile, false)
	diffStringSlice(&changes, "listen.trusted_proxies", old.Listen.TrustedProxies, new.Listen.TrustedProxies, false)

	// ── Reloadable: upstream ──
	diffField(&changes, "upstream.target_url", old.Upstream.TargetURL, new.Upstream.TargetURL, true)
	diffStringSlice(&changes, "upstream.allowed_headers", old.Upstream.AllowedHeaders, new.Upstream.AllowedHeaders, true)
	diffStringMap(&changes, "upstream.custom_headers", old.Upstream.CustomHeaders, new.Upstream.CustomHeaders, true)
	diffField(&changes, "upstream.debug", old.Upstream.Debug, new.Upstream.Debug, true)
	// probe.enabled is restart-scoped: the probe goroutine either exists
	// or it does not. Its cadence and path follow a running probe.
	diffField(&changes, "upstream.probe.enabled", old.Upstream.Probe.Enabled, new.Upstream.Probe.Enabled, false)
	diffField(&changes, "upstream.probe.interval", old.Upstream.Probe.Interval.Duration, new.Upstream.Probe.Interval.Duration, true)
	diffField(&changes, "upstream.probe.timeout", old.Upstream.Probe.Timeout.Duration, new.Upstream.Probe.Timeout.Duration, true)
	diffField(&changes, "upstream.probe.path", old.Upstream.Probe.Path, new.Upstream.Probe.Path, true)

	// ── Reloadable: rate_limit rates ──
	// The limiter middleware is built at startup, so enabling or disabling
	// the feature needs a restart; the rates of a running limiter do not.
	diffField(&changes, "rate_limit.enabled", old.RateLimit.Enabled, new.RateLimit.Enabled, false)
	diffField(&changes, "rate_limit.per_ip", old.RateLimit.PerIP, new.RateLimit.PerIP, true)
	diffField(&changes, "rate_limit.burst", old.RateLimit.Burst, new.RateLimit.Burst, true)
	diffField(&changes, "rate_limit.cleanup_interval", old.RateLimit.CleanupInterval.Duration, new.RateLimit.CleanupInterval.Duration, false)

	// ── Reloadable: logging level and sampling ──
	// Format and output pick the handler, which is wired at startup.
	diffField(&changes, "logging.level", old.Logging.Level, new.Logging.Level, true)
	diffField(&changes, "logging.format", old.Logging.Format, new.Logging.Format, false)
	diffField(&changes, "logging.output", old.Logging.Output, new.Logging.Output, false)
	diffField(&changes, "logging.audit.sampling_rate", old.Logging.Audit.SamplingRate, new.Logging.Audit.SamplingRate, true)
	diffField(&changes, "logging.audit.error_sampling_rate", old.Logging.Audit.ErrorSamplingRate, new.Logging.Audit.ErrorSamplingRate, true)

	// ── Non-reloadable: health, shutdown, reload ──
	diffField(&changes, "health.liveness_path", old.Health.LivenessPath, new.Health.LivenessPath, false)
	diffField(&changes, "health.readiness_path", old.Health.ReadinessPath, new.Health.ReadinessPath, false)
	diffField(&changes, "shutdown.timeout", old.Shutdown.Timeout.Duration, new.Shutdown.Timeout.Duration, false)
	diffField(&changes, "reload.enabled", old.Reload.Enabled, new.Reload.Enabled, false)
	diffField(&changes, "reload.watch_file", old.Reload.WatchFile, new.Reload.WatchFile, false)
	diffField(&changes, "reload.debounce", old.Reload.Debounce.Duration, new.Reload.Debounce.Duration, false)

	return changes
}

// diffField appends a Change if old != new using reflect.DeepEqual for comparison.
func diffField(changes *[]Change, field string, oldVal, newVal interface{}, reloadable bool) {
	if !reflect.DeepEqual(oldVal, newVal) {
		*changes = append(*changes, Change{
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			Reloadable: reloadable,
		})
	}
}

// diffStringSlice compares two string slices and appends a Change if they differ.
func diffStringSlice(changes *[]Change, field string, oldVal, newVal []string, reloadable bool) {
	if !reflect.DeepEqual(oldVal, newVal) {
		*changes = append(*changes, Change{
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			Reloadable: reloadable,
		})
	}
}

// diffStringMap compares two string maps and appends a Change if they differ.
func diffStringMap(changes *[]Change, field string, oldVal, newVal map[string]string, reloadable bool) {
	if !reflect.DeepEqual(oldVal, newVal) {
		*changes = append(*changes, Change{
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			Reloadable: reloadable,
		})
	}
}
