// Package server integrates all components into a complete HTTP server
// for the passage forwarding proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/passage-proxy/passage/internal/audit"
	"github.com/passage-proxy/passage/internal/config"
	"github.com/passage-proxy/passage/internal/ctxkeys"
	passageerrors "github.com/passage-proxy/passage/internal/errors"
	"github.com/passage-proxy/passage/internal/health"
	"github.com/passage-proxy/passage/internal/proxy"
	"github.com/passage-proxy/passage/internal/security"
)

// allowedMethods are the inbound methods the proxy forwards. Anything else
// is answered with 405 before the upstream is involved.
var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodHead:    true,
	http.MethodPatch:   true,
}

// resolveState is the per-request view of the upstream configuration.
// Exactly one of target and err is set. A reload swaps the whole state so
// in-flight requests keep the view they started with.
type resolveState struct {
	target *config.Target
	err    error
}

// Server is the passage HTTP server assembling all components.
type Server struct {
	cfg           *config.Config
	mu            sync.Mutex
	httpServer    *http.Server
	listener      net.Listener // if non-nil, Start uses this instead of creating one
	resolved      atomic.Pointer[resolveState]
	forwarder     *proxy.Forwarder
	healthHandler *health.Handler
	prober        *health.Prober // nil when probing is disabled
	reloader      *config.Reloader
	middlewares   []security.Middleware
	auditLogger   *audit.Logger
	metrics       *audit.Metrics
	logger        *slog.Logger
	logLevel      *slog.LevelVar
	version       string
}

// New creates a Server from configuration. A missing or invalid target URL
// is not fatal here: the server comes up anyway and answers every proxied
// request with the configuration error until a reload provides a valid
// target.
func New(cfg *config.Config, version string) (*Server, error) {
	// 1. Create logger based on config
	logger, level := buildLogger(cfg)

	// 2. Create Metrics collector
	metrics := audit.NewMetrics()
	metrics.SetBuildInfo(version, runtime.Version())

	// 3. Create AuditLogger
	auditLogger := audit.NewLogger(logger, audit.SamplingConfig{
		Rate:      cfg.Logging.Audit.SamplingRate,
		ErrorRate: cfg.Logging.Audit.ErrorSamplingRate,
	})

	// 4. Create Forwarder over a pooled transport
	forwarder := proxy.NewForwarder(proxy.NewTransport(), logger)

	srv := &Server{
		cfg:         cfg,
		forwarder:   forwarder,
		auditLogger: auditLogger,
		metrics:     metrics,
		logger:      logger,
		logLevel:    level,
		version:     version,
	}

	// 5. Initial target resolution
	srv.resolve(cfg)

	// 6. Upstream reachability probe, if enabled
	if cfg.Upstream.Probe.Enabled {
		srv.prober = health.NewProber(
			srv.targetOrigin,
			cfg.Upstream.Probe.Path,
			cfg.Upstream.Probe.Interval.Duration,
			cfg.Upstream.Probe.Timeout.Duration,
			logger,
			metrics.SetUpstreamHealth,
		)
	} else {
		// Without a probe the health gauge mirrors resolution.
		metrics.SetUpstreamHealth(srv.resolved.Load().target != nil)
	}

	// 7. Create Health handler
	checker := &health.SimpleTargetChecker{
		ResolvedFn:  func() bool { return srv.resolved.Load().target != nil },
		ReachableFn: srv.targetReachable,
	}
	srv.healthHandler = health.NewHandler(checker, version, cfg.Health.LivenessPath, cfg.Health.ReadinessPath)

	// 8. Build security pipeline
	srv.middlewares = security.BuildPipeline(security.PipelineConfig{
		GlobalRateLimit: cfg.Listen.GlobalRateLimit,
		RateLimit: security.RateLimitPipelineConfig{
			Enabled:         cfg.RateLimit.Enabled,
			PerIP:           cfg.RateLimit.PerIP,
			Burst:           cfg.RateLimit.Burst,
			CleanupInterval: cfg.RateLimit.CleanupInterval.Duration,
		},
		TrustedProxies: cfg.Listen.TrustedProxies,
		OnRateLimit:    metrics.RecordRateLimitHit,
	})

	return srv, nil
}

// EnableHotReload attaches a configuration reloader watching configPath.
// Must be called before Start; reloads then reach this server through
// OnConfigReload.
func (s *Server) EnableHotReload(configPath string) {
	rel := config.NewReloader(configPath, s.cfg, s.logger)
	rel.Register(s)
	rel.OnResult = s.recordReload
	s.reloader = rel
}

// Start begins listening and serving. It blocks until the context is
// canceled or an unrecoverable error occurs.
func (s *Server) Start(ctx context.Context) error {
	if s.prober != nil {
		go s.prober.Run(ctx)
	}
	if s.reloader != nil {
		if err := s.reloader.Start(ctx); err != nil {
			return fmt.Errorf("starting config reloader: %w", err)
		}
	}

	handler := s.handler()

	listenAddr := fmt.Sprintf("%s:%d", s.cfg.Listen.Host, s.cfg.Listen.Port)

	// Use injected listener or create one
	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", listenAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", listenAddr, err)
		}

		// Wrap with LimitedListener if configured
		if s.cfg.Listen.MaxConnections > 0 {
			ln = newLimitedListener(ln, s.cfg.Listen.MaxConnections)
		}
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if s.cfg.Listen.TLS.CertFile != "" {
			s.logger.Info("listening", "addr", listenAddr, "tls", true)
			errCh <- srv.ServeTLS(ln, s.cfg.Listen.TLS.CertFile, s.cfg.Listen.TLS.KeyFile)
			return
		}
		s.logger.Info("listening", "addr", listenAddr)
		errCh <- srv.Serve(ln)
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Shutdown.Timeout.Duration)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// Shutdown performs graceful shutdown: stop accepting, drain in-flight
// requests, then stop the background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()

	if hs != nil {
		if err := hs.Shutdown(ctx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.reloader != nil {
		s.reloader.Stop()
	}
	security.StopAll(s.middlewares)

	return nil
}

// handler builds the complete HTTP handler. Health and metrics endpoints
// are served directly; everything else flows through observability, the
// security pipeline, and finally the proxy itself.
func (s *Server) handler() http.Handler {
	secured := security.ApplyPipeline(http.HandlerFunc(s.serveProxy), s.middlewares)
	observed := s.withObservability(secured)

	mux := http.NewServeMux()

	// Health and metrics endpoints bypass the pipeline and audit stream
	mux.Handle(s.cfg.Health.LivenessPath, s.healthHandler)
	mux.Handle(s.cfg.Health.ReadinessPath, s.healthHandler)
	mux.HandleFunc("/metrics", s.metrics.Handler())

	// Everything else is proxied
	mux.Handle("/", observed)

	return mux
}

// withObservability wraps proxied traffic with the audit entry, request
// metrics, and a response status recorder. It runs outside the security
// pipeline so blocked requests are counted and logged too.
func (s *Server) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		entry := &ctxkeys.AuditEntry{
			Method:    r.Method,
			Path:      r.URL.Path,
			ClientIP:  s.clientIP(r),
			Status:    "ok",
			StartTime: start,
		}
		r = r.WithContext(ctxkeys.WithAuditEntry(r.Context(), entry))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		s.metrics.IncrActiveRequests()
		next.ServeHTTP(rec, r)
		s.metrics.DecrActiveRequests()

		s.metrics.RecordRequest(r.Method, rec.status)
		s.metrics.RecordLatency(r.Method, float64(time.Since(start))/float64(time.Millisecond))
		s.auditLogger.LogRequest(r.Context())
	})
}

// serveProxy is the terminal handler behind the security pipeline: it
// gates the method, loads the resolved target view, and relays the
// exchange.
func (s *Server) serveProxy(w http.ResponseWriter, r *http.Request) {
	entry, hasEntry := ctxkeys.AuditEntryFrom(r.Context())

	if !allowedMethods[r.Method] {
		if hasEntry {
			entry.Status = "blocked"
			entry.BlockReason = "method_not_allowed"
		}
		passageerrors.WriteHTTPError(w, passageerrors.ErrMethodNotAllowed)
		return
	}

	st := s.resolved.Load()
	if st.err != nil {
		if hasEntry {
			entry.Status = "error"
			entry.BlockReason = "configuration"
		}
		s.metrics.RecordUpstreamError("config")
		passageerrors.WriteHTTPError(w, passageerrors.NewConfigError(st.err))
		return
	}

	result, err := s.forwarder.Forward(w, r, st.target, s.clientIP(r))
	if err != nil {
		// Forward already answered with the 502 body.
		if hasEntry {
			entry.Status = "error"
		}
		s.metrics.RecordUpstreamError("connect")
		s.logger.Error("forwarding failed", "error", err, "target", st.target.Raw)
		return
	}

	if hasEntry {
		entry.UpstreamStatus = result.Status
		entry.BytesOut = result.BytesOut
		entry.RedirectRewritten = result.RedirectRewritten
	}
	if result.RedirectRewritten {
		s.metrics.RecordRedirectRewrite()
	}
}

// OnConfigReload implements config.Reloadable. Runtime-scoped settings are
// applied: the upstream view, rate-limit rates, probe cadence, log level,
// and audit sampling. Listener settings stay fixed until restart.
func (s *Server) OnConfigReload(newCfg *config.Config) error {
	s.resolve(newCfg)

	s.logLevel.Set(logLevel(newCfg))

	s.auditLogger.UpdateSampling(audit.SamplingConfig{
		Rate:      newCfg.Logging.Audit.SamplingRate,
		ErrorRate: newCfg.Logging.Audit.ErrorSamplingRate,
	})

	for _, mw := range s.middlewares {
		if rl, ok := mw.(*security.IPRateLimiter); ok {
			rl.UpdateLimits(newCfg.RateLimit.PerIP, newCfg.RateLimit.Burst)
		}
	}

	if s.prober != nil {
		s.prober.UpdateSettings(
			newCfg.Upstream.Probe.Path,
			newCfg.Upstream.Probe.Interval.Duration,
			newCfg.Upstream.Probe.Timeout.Duration,
		)
	} else {
		s.metrics.SetUpstreamHealth(s.resolved.Load().target != nil)
	}

	return nil
}

// resolve re-derives the immutable target view from cfg and swaps it in.
// Resolution failure is stored, not returned: requests answer with the
// configuration error until a valid target arrives.
func (s *Server) resolve(cfg *config.Config) {
	tgt, err := cfg.ResolveTarget()
	s.resolved.Store(&resolveState{target: tgt, err: err})
	if err != nil {
		s.logger.Warn("upstream target not resolved", "error", err)
		return
	}
	s.logger.Info("upstream target resolved", "target", tgt.Origin)
}

// recordReload feeds reload outcomes into the metrics, including failed
// attempts the subscribers never see.
func (s *Server) recordReload(err error) {
	s.metrics.RecordConfigReload(err == nil)
	if err == nil {
		s.metrics.SetConfigReloadTime(time.Now())
	}
}

// targetOrigin reports the current upstream origin for the prober.
func (s *Server) targetOrigin() (string, bool) {
	st := s.resolved.Load()
	if st.target == nil {
		return "", false
	}
	return st.target.Origin, true
}

// targetReachable reports upstream reachability. With probing disabled the
// proxy assumes reachable and lets requests find out.
func (s *Server) targetReachable() bool {
	if s.prober == nil {
		return true
	}
	return s.prober.Healthy()
}

// clientIP resolves the caller address, honoring X-Forwarded-For only from
// configured trusted proxies.
func (s *Server) clientIP(r *http.Request) string {
	return security.TrustedClientIP(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), s.cfg.Listen.TrustedProxies)
}

// buildLogger creates an slog.Logger based on configuration. The returned
// LevelVar allows the level to follow config reloads.
func buildLogger(cfg *config.Config) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	level.Set(logLevel(cfg))

	opts := &slog.HandlerOptions{Level: level}

	var output *os.File
	switch cfg.Logging.Output {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler), level
}

// logLevel maps the configured level to slog, with the upstream debug flag
// forcing debug so the forwarder's header traces actually appear.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Upstream.Debug {
		return slog.LevelDebug
	}
	switch cfg.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// statusRecorder captures the response status for metrics and audit.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

// WriteHeader records the status before delegating.
func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so streamed responses keep
// flowing through the recorder.
func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ── LimitedListener ──

// limitedListener wraps a net.Listener to limit maximum concurrent connections.
type limitedListener struct {
	net.Listener
	sem chan struct{}
}

// newLimitedListener creates a listener that limits concurrent connections.
func newLimitedListener(l net.Listener, maxConns int) net.Listener {
	return &limitedListener{
		Listener: l,
		sem:      make(chan struct{}, maxConns),
	}
}

// Accept waits for and returns the next connection, blocking if at limit.
func (l *limitedListener) Accept() (net.Conn, error) {
	l.sem <- struct{}{}
	c, err := l.Listener.Accept()
	if err != nil {
		<-l.sem
		return nil, err
	}
	return &limitedConn{Conn: c, sem: l.sem}, nil
}

// limitedConn wraps a net.Conn to release the semaphore slot on close.
type limitedConn struct {
	net.Conn
	sem    chan struct{}
	closed sync.Once
}

// Close releases the connection and frees the semaphore slot.
func (c *limitedConn) Close() error {
	err := c.Conn.Close()
	c.closed.Do(func() { <-c.sem })
	return err
}
