// Package ctxkeys defines context keys for passing data through the request pipeline.
// All context keys are unexported to prevent collisions. Use the With*/From accessor pairs.
package ctxkeys

import (
	"context"
	"time"
)

// ── Key types (unexported, collision-proof) ──

type requestIDKey struct{}
type auditEntryKey struct{}

// ── Data types ──

// AuditEntry holds audit log data accumulated during request processing.
type AuditEntry struct {
	RequestID   string
	Method      string
	Path        string
	ClientIP    string
	Status      string // "ok", "blocked", "error"
	BlockReason string
	StartTime   time.Time
	// Upstream exchange
	UpstreamStatus    int
	BytesOut          int64
	RedirectRewritten bool
}

// ── Getter/Setter (With*/From pattern) ──

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom retrieves the request ID from the context.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// WithAuditEntry stores an AuditEntry pointer in the context.
func WithAuditEntry(ctx context.Context, entry *AuditEntry) context.Context {
	return context.WithValue(ctx, auditEntryKey{}, entry)
}

// AuditEntryFrom retrieves the AuditEntry pointer from the context.
func AuditEntryFrom(ctx context.Context) (*AuditEntry, bool) {
	entry, ok := ctx.Value(auditEntryKey{}).(*AuditEntry)
	return entry, ok
}
