package security

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/passage-proxy/passage/internal/ctxkeys"
)

// requestIDHeader carries the request ID on responses and, when a caller
// supplies one, on inbound requests.
const requestIDHeader = "X-Request-ID"

// maxInboundIDLength caps caller-supplied IDs so log fields stay bounded.
const maxInboundIDLength = 128

// RequestID assigns every request a unique identifier. An inbound
// X-Request-ID is honored when present so IDs can follow a call chain
// across services; otherwise a fresh UUID is generated.
type RequestID struct{}

// NewRequestID creates the request ID middleware.
func NewRequestID() *RequestID {
	return &RequestID{}
}

// Process stores the ID in the request context, mirrors it on the response,
// and stamps it onto the audit entry when one is already attached.
func (m *RequestID) Process(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxInboundIDLength {
			id = uuid.NewString()
		}

		ctx := ctxkeys.WithRequestID(r.Context(), id)
		if entry, ok := ctxkeys.AuditEntryFrom(ctx); ok {
			entry.RequestID = id
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Name returns the middleware name.
func (m *RequestID) Name() string {
	return "request_id"
}
