// Package security implements the pre-proxy middleware pipeline.
//
// Order: RequestID, GlobalRateLimiter, IPRateLimiter. A middleware either
// passes the request on or answers it directly with a JSON error body,
// tagging the request's audit entry so the block shows up in logs.
package security

import (
	"net/http"
	"time"

	"github.com/passage-proxy/passage/internal/ctxkeys"
)

// Middleware is a processing step in the pipeline.
type Middleware interface {
	Process(next http.Handler) http.Handler
	Name() string
}

// PipelineConfig holds config needed for the pipeline.
type PipelineConfig struct {
	GlobalRateLimit int // requests/min across all clients, 0 = off
	RateLimit       RateLimitPipelineConfig
	TrustedProxies  []string

	// OnRateLimit, when set, is invoked with the rejecting layer
	// ("global" or "ip") each time a request is rate limited.
	OnRateLimit func(layer string)
}

// RateLimitPipelineConfig holds per-IP rate limiting configuration.
type RateLimitPipelineConfig struct {
	Enabled         bool
	PerIP           int
	Burst           int
	CleanupInterval time.Duration
}

// BuildPipeline constructs the ordered middleware chain.
// RequestID always runs first so that rejected requests still carry an ID
// in their error response and audit record.
func BuildPipeline(cfg PipelineConfig) []Middleware {
	onLimit := cfg.OnRateLimit
	if onLimit == nil {
		onLimit = func(string) {}
	}

	mws := []Middleware{NewRequestID()}

	if cfg.GlobalRateLimit > 0 {
		mws = append(mws, NewGlobalRateLimiter(cfg.GlobalRateLimit, func() { onLimit("global") }))
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.PerIP > 0 {
		mws = append(mws, NewIPRateLimiter(
			cfg.RateLimit.PerIP,
			cfg.RateLimit.Burst,
			cfg.RateLimit.CleanupInterval,
			cfg.TrustedProxies,
			func() { onLimit("ip") },
		))
	}

	return mws
}

// ApplyPipeline wraps a handler with all middleware in order.
// Apply in reverse order so first middleware executes first.
func ApplyPipeline(handler http.Handler, middlewares []Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i].Process(handler)
	}
	return handler
}

// StopAll stops every middleware that owns background work.
func StopAll(middlewares []Middleware) {
	for _, mw := range middlewares {
		if s, ok := mw.(interface{ Stop() }); ok {
			s.Stop()
		}
	}
}

// markBlocked tags the request's audit entry, when present, as blocked.
func markBlocked(r *http.Request, reason string) {
	if entry, ok := ctxkeys.AuditEntryFrom(r.Context()); ok {
		entry.Status = "blocked"
		entry.BlockReason = reason
	}
}
