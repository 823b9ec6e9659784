package security

import (
	"net/http"

	"golang.org/x/time/rate"

	passageerrors "github.com/passage-proxy/passage/internal/errors"
)

// GlobalRateLimiter enforces a proxy-wide request rate limit using a token bucket.
type GlobalRateLimiter struct {
	limiter *rate.Limiter
	onLimit func()
}

// NewGlobalRateLimiter creates a global rate limiter.
// rpm is requests per minute; internally converted to per-second.
// onLimit, which may be nil, fires on every rejected request.
func NewGlobalRateLimiter(rpm int, onLimit func()) *GlobalRateLimiter {
	burst := rpm / 60
	if burst < 1 {
		burst = 1
	}
	if onLimit == nil {
		onLimit = func() {}
	}
	return &GlobalRateLimiter{
		limiter: rate.NewLimiter(perMinute(rpm), burst),
		onLimit: onLimit,
	}
}

// Process returns an http.Handler that enforces the global rate limit.
func (g *GlobalRateLimiter) Process(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.limiter.Allow() {
			markBlocked(r, "rate_limit_global")
			g.onLimit()
			passageerrors.WriteHTTPError(w, passageerrors.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Name returns the middleware name for logging and debugging.
func (g *GlobalRateLimiter) Name() string {
	return "global_rate_limiter"
}
