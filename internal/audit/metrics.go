package audit

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// millisecondsPerSecond is the conversion factor from milliseconds to seconds.
const millisecondsPerSecond = 1000.0

// Metrics tracks proxy metrics and serves them in Prometheus text format.
// It uses a custom prometheus.Registry for isolation and testability,
// with proper histograms, HELP/TYPE annotations, and standard exposition format.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	activeRequests   prometheus.Gauge
	rateLimitHits    *prometheus.CounterVec
	upstreamHealth   prometheus.Gauge
	upstreamErrors   *prometheus.CounterVec
	redirectRewrites prometheus.Counter
	configReloads    *prometheus.CounterVec
	configReloadTime prometheus.Gauge
	buildInfo        *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics collector with a custom Prometheus registry.
// All metric families are pre-registered with HELP and TYPE metadata.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_requests_total",
			Help: "Total number of requests processed by the proxy.",
		}, []string{"method", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passage_request_duration_seconds",
			Help:    "Request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "passage_active_requests",
			Help: "Number of requests currently in flight.",
		}),

		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_rate_limit_hits_total",
			Help: "Total number of rate limit hits.",
		}, []string{"layer"}),

		upstreamHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "passage_upstream_health",
			Help: "Health status of the upstream target (1=healthy, 0=unhealthy).",
		}),

		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_upstream_errors_total",
			Help: "Total number of failed upstream connection attempts.",
		}, []string{"reason"}),

		redirectRewrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passage_redirect_rewrites_total",
			Help: "Total number of upstream redirects rewritten to the proxy origin.",
		}),

		configReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_config_reloads_total",
			Help: "Total number of configuration reload attempts.",
		}, []string{"result"}),

		configReloadTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "passage_config_reload_timestamp_seconds",
			Help: "Unix timestamp of the last successful configuration reload.",
		}),

		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "passage_build_info",
			Help: "Build information about the passage binary. Value is always 1.",
		}, []string{"version", "go_version"}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.rateLimitHits,
		m.upstreamHealth,
		m.upstreamErrors,
		m.redirectRewrites,
		m.configReloads,
		m.configReloadTime,
		m.buildInfo,
	)

	return m
}

// RecordRequest increments the request counter for the given method and status code.
func (m *Metrics) RecordRequest(method string, status int) {
	m.requestsTotal.WithLabelValues(method, statusString(status)).Inc()
}

// RecordLatency records request duration in milliseconds for the given method.
// The value is converted to seconds internally for Prometheus convention compliance.
func (m *Metrics) RecordLatency(method string, ms float64) {
	m.requestDuration.WithLabelValues(method).Observe(ms / millisecondsPerSecond)
}

// IncrActiveRequests increments the in-flight request count by one.
func (m *Metrics) IncrActiveRequests() {
	m.activeRequests.Inc()
}

// DecrActiveRequests decrements the in-flight request count by one.
func (m *Metrics) DecrActiveRequests() {
	m.activeRequests.Dec()
}

// RecordRateLimitHit records a rate limit event for the given layer.
// Layer is typically "ip" or "global".
func (m *Metrics) RecordRateLimitHit(layer string) {
	m.rateLimitHits.WithLabelValues(layer).Inc()
}

// SetUpstreamHealth sets upstream health status. Pass true for healthy, false for unhealthy.
func (m *Metrics) SetUpstreamHealth(healthy bool) {
	var val float64
	if healthy {
		val = 1
	}
	m.upstreamHealth.Set(val)
}

// RecordUpstreamError records a failed upstream connection attempt.
// Reason should be one of: "config", "connect", "copy".
func (m *Metrics) RecordUpstreamError(reason string) {
	m.upstreamErrors.WithLabelValues(reason).Inc()
}

// RecordRedirectRewrite records one upstream redirect rewritten to the proxy origin.
func (m *Metrics) RecordRedirectRewrite() {
	m.redirectRewrites.Inc()
}

// Handler returns an HTTP handler that serves /metrics in Prometheus text format.
// The output includes proper HELP and TYPE annotations per the Prometheus exposition format.
func (m *Metrics) Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}

// RecordConfigReload records a configuration reload attempt.
// Pass true for a successful reload, false for a failure.
func (m *Metrics) RecordConfigReload(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.configReloads.WithLabelValues(result).Inc()
}

// SetConfigReloadTime records the timestamp of the last configuration reload.
func (m *Metrics) SetConfigReloadTime(t time.Time) {
	m.configReloadTime.Set(float64(t.Unix()))
}

// SetBuildInfo sets the build information gauge. The gauge value is always 1;
// version and Go version are exposed as labels.
func (m *Metrics) SetBuildInfo(version, goVersion string) {
	m.buildInfo.WithLabelValues(version, goVersion).Set(1)
}

// statusString converts an integer status code to its string representation.
func statusString(code int) string {
	// Avoid fmt.Sprintf for hot path performance
	switch code {
	case 200:
		return "200"
	case 201:
		return "201"
	case 204:
		return "204"
	case 301:
		return "301"
	case 302:
		return "302"
	case 400:
		return "400"
	case 404:
		return "404"
	case 405:
		return "405"
	case 429:
		return "429"
	case 500:
		return "500"
	case 502:
		return "502"
	case 503:
		return "503"
	default:
		// Fallback for uncommon status codes
		return intToString(code)
	}
}

// intToString converts a non-negative integer to a string without fmt.Sprintf.
func intToString(n int) string {
	if n == 0 {
		return "0"
	}
	negative := n < 0
	if negative {
		n = -n
	}
	buf := make([]byte, 0, 5)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	if negative {
		buf = append(buf, '-')
	}
	// Reverse
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
