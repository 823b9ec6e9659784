package security

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	passageerrors "github.com/passage-proxy/passage/internal/errors"
)

// ipEntry holds a rate limiter and its last-used timestamp for cleanup.
type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // UnixNano
}

// IPRateLimiter enforces per-IP rate limiting using individual token buckets.
// The rates can be swapped at runtime via UpdateLimits.
type IPRateLimiter struct {
	limiters        sync.Map     // IP string → *ipEntry
	perIP           atomic.Int64 // requests per minute
	burst           atomic.Int64
	cleanupInterval time.Duration
	trustedProxies  []string
	onLimit         func()
	cancel          context.CancelFunc
}

// NewIPRateLimiter creates a per-IP rate limiter.
// perIP is requests per minute per IP; burst is the token bucket burst size.
// cleanupInterval controls how often inactive entries are removed.
// onLimit, which may be nil, fires on every rejected request.
func NewIPRateLimiter(perIP, burst int, cleanupInterval time.Duration, trustedProxies []string, onLimit func()) *IPRateLimiter {
	if onLimit == nil {
		onLimit = func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	rl := &IPRateLimiter{
		cleanupInterval: cleanupInterval,
		trustedProxies:  trustedProxies,
		onLimit:         onLimit,
		cancel:          cancel,
	}
	rl.perIP.Store(int64(perIP))
	rl.burst.Store(int64(burst))
	go rl.cleanup(ctx)
	return rl
}

// UpdateLimits applies new rates to existing buckets and to all buckets
// created afterwards. Tokens already accumulated are kept.
func (rl *IPRateLimiter) UpdateLimits(perIP, burst int) {
	rl.perIP.Store(int64(perIP))
	rl.burst.Store(int64(burst))

	limit := perMinute(perIP)
	rl.limiters.Range(func(_, value interface{}) bool {
		entry := value.(*ipEntry)
		entry.limiter.SetLimit(limit)
		entry.limiter.SetBurst(burst)
		return true
	})
}

// perMinute converts a requests-per-minute budget to the per-second rate
// the token bucket refills at.
func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// Process returns an http.Handler that enforces per-IP rate limiting.
func (rl *IPRateLimiter) Process(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := TrustedClientIP(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), rl.trustedProxies)
		limiter := rl.getLimiter(ip)

		if !limiter.Allow() {
			markBlocked(r, "rate_limit_ip")
			rl.onLimit()
			passageerrors.WriteHTTPError(w, passageerrors.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Name returns the middleware name.
func (rl *IPRateLimiter) Name() string {
	return "ip_rate_limiter"
}

// Stop stops the cleanup goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.cancel()
}

// getLimiter returns the rate limiter for the given IP, creating one if needed.
func (rl *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	now := time.Now().UnixNano()

	if v, ok := rl.limiters.Load(ip); ok {
		entry := v.(*ipEntry)
		entry.lastSeen.Store(now)
		return entry.limiter
	}

	limiter := rate.NewLimiter(perMinute(int(rl.perIP.Load())), int(rl.burst.Load()))
	entry := &ipEntry{limiter: limiter}
	entry.lastSeen.Store(now)

	actual, loaded := rl.limiters.LoadOrStore(ip, entry)
	if loaded {
		existing := actual.(*ipEntry)
		existing.lastSeen.Store(now)
		return existing.limiter
	}
	return limiter
}

// cleanup periodically removes inactive IP entries.
func (rl *IPRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.cleanupInterval).UnixNano()
			rl.limiters.Range(func(key, value interface{}) bool {
				entry := value.(*ipEntry)
				if entry.lastSeen.Load() < cutoff {
					rl.limiters.Delete(key)
				}
				return true
			})
		}
	}
}
