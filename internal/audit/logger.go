package audit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/passage-proxy/passage/internal/ctxkeys"
)

// Logger provides OpenTelemetry-compatible structured audit logging.
// Sampling rates can be swapped at runtime via UpdateSampling.
type Logger struct {
	slogger  *slog.Logger
	sampling atomic.Value // SamplingConfig
}

// NewLogger creates an audit logger with the given sampling configuration.
func NewLogger(slogger *slog.Logger, sampling SamplingConfig) *Logger {
	l := &Logger{slogger: slogger}
	l.sampling.Store(sampling)
	return l
}

// UpdateSampling replaces the sampling configuration. Safe to call while
// requests are being logged.
func (l *Logger) UpdateSampling(sampling SamplingConfig) {
	l.sampling.Store(sampling)
}

// LogRequest logs an audit entry from the request context.
// Uses OTel semantic convention field names.
func (l *Logger) LogRequest(ctx context.Context) {
	entry, ok := ctxkeys.AuditEntryFrom(ctx)
	if !ok {
		return
	}

	if !l.sampling.Load().(SamplingConfig).ShouldLog(entry.Status) {
		return
	}

	attrs := []slog.Attr{
		slog.String("request_id", entry.RequestID),
		slog.Group("attributes",
			slog.String("http.method", entry.Method),
			slog.String("http.path", entry.Path),
			slog.String("client.address", entry.ClientIP),
			slog.String("proxy.status", entry.Status),
			slog.String("proxy.block_reason", entry.BlockReason),
			slog.Time("proxy.start_time", entry.StartTime),
		),
	}

	// Add upstream fields once a response has been relayed
	if entry.UpstreamStatus > 0 {
		attrs = append(attrs, slog.Group("upstream",
			slog.Int("status", entry.UpstreamStatus),
			slog.Int64("bytes_out", entry.BytesOut),
			slog.Bool("redirect_rewritten", entry.RedirectRewritten),
		))
	}

	l.slogger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
