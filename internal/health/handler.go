package health

import (
	"encoding/json"
	"net/http"
)

// TargetChecker is the interface that the health handler needs from the proxy
// runtime. This avoids a direct dependency on internal/config.
type TargetChecker interface {
	// TargetResolved reports whether a valid target URL is currently configured.
	TargetResolved() bool
	// TargetReachable reports the latest reachability probe result. It must
	// return true when active probing is disabled.
	TargetReachable() bool
}

// SimpleTargetChecker is a basic TargetChecker backed by plain functions.
type SimpleTargetChecker struct {
	ResolvedFn  func() bool
	ReachableFn func() bool
}

// TargetResolved reports target validity via the ResolvedFn function.
func (s *SimpleTargetChecker) TargetResolved() bool { return s.ResolvedFn() }

// TargetReachable reports probe state via the ReachableFn function.
func (s *SimpleTargetChecker) TargetReachable() bool { return s.ReachableFn() }

// Handler provides HTTP health check endpoints.
type Handler struct {
	checker       TargetChecker
	version       string
	livenessPath  string
	readinessPath string
}

// NewHandler creates a health check handler serving the given endpoint paths.
func NewHandler(checker TargetChecker, version, livenessPath, readinessPath string) *Handler {
	return &Handler{
		checker:       checker,
		version:       version,
		livenessPath:  livenessPath,
		readinessPath: readinessPath,
	}
}

// ServeHTTP routes to the appropriate health endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case h.livenessPath:
		h.handleLiveness(w, r)
	case h.readinessPath:
		h.handleReadiness(w, r)
	default:
		http.NotFound(w, r)
	}
}

// LivenessResponse is the JSON response for the liveness endpoint.
type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadinessResponse is the JSON response for the readiness endpoint.
type ReadinessResponse struct {
	Status          string `json:"status"`
	TargetResolved  bool   `json:"target_resolved"`
	TargetReachable bool   `json:"target_reachable"`
}

func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LivenessResponse{
		Status:  "ok",
		Version: h.version,
	})
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	resolved := h.checker.TargetResolved()
	reachable := h.checker.TargetReachable()

	w.Header().Set("Content-Type", "application/json")

	resp := ReadinessResponse{
		TargetResolved:  resolved,
		TargetReachable: reachable,
	}

	if resolved && reachable {
		resp.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		resp.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(resp)
}
