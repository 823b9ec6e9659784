package health

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Prober periodically checks upstream reachability with HEAD requests.
// The latest result is held in an atomic flag consumed by the readiness
// endpoint; state transitions are logged and reported through onChange.
type Prober struct {
	origin   func() (string, bool) // current target origin, false when unresolved
	settings atomic.Value          // probeSettings
	client   *http.Client
	logger   *slog.Logger
	onChange func(healthy bool)

	healthy atomic.Bool
}

// probeSettings is the reloadable part of the prober configuration.
// The request deadline comes from a per-probe context rather than the
// client, so a timeout change applies to the next cycle.
type probeSettings struct {
	path     string
	interval time.Duration
	timeout  time.Duration
}

// NewProber creates a prober that resolves the target origin through the
// origin function on every cycle, so configuration reloads take effect
// without restarting the probe loop. onChange may be nil.
func NewProber(origin func() (string, bool), path string, interval, timeout time.Duration, logger *slog.Logger, onChange func(healthy bool)) *Prober {
	p := &Prober{
		origin:   origin,
		client:   &http.Client{},
		logger:   logger,
		onChange: onChange,
	}
	p.settings.Store(normalizeSettings(path, interval, timeout))
	return p
}

// UpdateSettings replaces the probe path, interval, and timeout. A running
// loop picks the new interval up after its current tick.
func (p *Prober) UpdateSettings(path string, interval, timeout time.Duration) {
	p.settings.Store(normalizeSettings(path, interval, timeout))
}

func normalizeSettings(path string, interval, timeout time.Duration) probeSettings {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return probeSettings{path: path, interval: interval, timeout: timeout}
}

func (p *Prober) current() probeSettings {
	return p.settings.Load().(probeSettings)
}

// Healthy reports the result of the most recent probe.
func (p *Prober) Healthy() bool {
	return p.healthy.Load()
}

// Run probes immediately and then at every interval until ctx is canceled.
func (p *Prober) Run(ctx context.Context) {
	p.probe(ctx)

	ticker := time.NewTicker(p.current().interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
			ticker.Reset(p.current().interval)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	origin, ok := p.origin()
	if !ok {
		p.update(false, "no valid target configured", nil)
		return
	}

	s := p.current()
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, origin+s.path, nil)
	if err != nil {
		p.update(false, "building probe request", err)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.update(false, "connecting to target", err)
		return
	}
	resp.Body.Close()

	// Any HTTP response counts as reachable. The proxy relays upstream
	// error statuses rather than judging them.
	p.update(true, "", nil)
}

// update swaps the health flag and reports transitions.
func (p *Prober) update(healthy bool, reason string, err error) {
	prev := p.healthy.Swap(healthy)
	if prev == healthy {
		return
	}

	if healthy {
		p.logger.Info("upstream reachable")
	} else if err != nil {
		p.logger.Warn("upstream unreachable", "reason", reason, "error", err)
	} else {
		p.logger.Warn("upstream unreachable", "reason", reason)
	}

	if p.onChange != nil {
		p.onChange(healthy)
	}
}
