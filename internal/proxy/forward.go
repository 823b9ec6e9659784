// Package proxy relays HTTP requests to a single configured upstream.
// It rebuilds headers on both legs from explicit allow-lists, never
// follows upstream redirects, and streams bodies in both directions.
package proxy

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/passage-proxy/passage/internal/audit"
	"github.com/passage-proxy/passage/internal/config"
	"github.com/passage-proxy/passage/internal/errors"
)

// Forwarder relays requests to the configured upstream.
// It uses http.Client directly instead of httputil.ReverseProxy
// to maintain full control over header management, redirect handling,
// and body streaming.
type Forwarder struct {
	client *http.Client
	logger *slog.Logger
}

// Result describes a completed upstream exchange.
type Result struct {
	Status            int
	BytesOut          int64
	RedirectRewritten bool
}

// NewForwarder creates a Forwarder using the given transport. Upstream
// redirects are never followed; the 3xx response is handed back (with its
// Location possibly rewritten) for the client to chase.
func NewForwarder(transport http.RoundTripper, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Forward proxies the request to the target and relays the response.
// Exactly one attempt is made: connection failures, timeouts, and TLS
// errors all surface as a 502 with the target URL and cause attached.
// clientIP is the already-resolved caller address used for X-Forwarded-For.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, tgt *config.Target, clientIP string) (*Result, error) {
	outURL := upstreamURL(tgt, r.URL)

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, outURL, r.Body)
	if err != nil {
		errors.WriteHTTPError(w, errors.NewUpstreamError(tgt.Raw, err))
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}

	// The upstream must see its own host, not the proxy's; the inbound
	// host travels in X-Forwarded-Host instead.
	outReq.Host = tgt.Host
	outReq.ContentLength = r.ContentLength

	BuildRequestHeaders(outReq.Header, r, tgt, clientIP)

	// An unset User-Agent stays unset: an empty value stops the client
	// from substituting the Go default.
	if _, ok := outReq.Header["User-Agent"]; !ok {
		outReq.Header.Set("User-Agent", "")
	}

	if tgt.Debug {
		f.logger.Debug("forwarding request",
			slog.String("method", r.Method),
			slog.String("url", outURL),
			slog.Any("forwarded_headers", audit.RedactHeaders(outReq.Header)),
			slog.Any("dropped_headers", droppedHeaderNames(r.Header, outReq.Header)),
		)
	}

	resp, err := f.client.Do(outReq)
	if err != nil {
		errors.WriteHTTPError(w, errors.NewUpstreamError(tgt.Raw, err))
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	BuildResponseHeaders(w.Header(), resp.Header, tgt)

	rewritten := false
	if loc, ok := RewriteLocation(resp.StatusCode, resp.Header.Get("Location"), tgt.Origin, requestOrigin(r)); ok {
		w.Header().Set("Location", loc)
		rewritten = true
	}

	w.WriteHeader(resp.StatusCode)

	written, copyErr := copyStreaming(w, resp.Body)
	if copyErr != nil {
		// The status line is already out; all that is left is to log.
		f.logger.Warn("response copy interrupted",
			slog.String("error", copyErr.Error()),
			slog.Int64("bytes_written", written),
		)
	}

	if tgt.Debug {
		f.logger.Debug("upstream response relayed",
			slog.Int("status", resp.StatusCode),
			slog.Int64("bytes", written),
			slog.Bool("location_rewritten", rewritten),
		)
	}

	return &Result{
		Status:            resp.StatusCode,
		BytesOut:          written,
		RedirectRewritten: rewritten,
	}, nil
}

// upstreamURL joins the target origin and base path with the inbound path
// and query. Any query or fragment on the configured target is discarded;
// a base path is preserved (target /v1 + request /users → /v1/users).
func upstreamURL(tgt *config.Target, in *url.URL) string {
	base := tgt.Origin + strings.TrimSuffix(tgt.URL.EscapedPath(), "/")
	out := base + in.EscapedPath()
	if in.RawQuery != "" {
		out += "?" + in.RawQuery
	}
	return out
}

// copyStreaming copies src to dst, flushing after every chunk so
// incremental and event-stream responses reach the client as they arrive
// rather than when the upstream closes.
func copyStreaming(dst http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, canFlush := dst.(http.Flusher)
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
	}
}

// droppedHeaderNames returns the sorted inbound header names that did not
// make it into the outbound set.
func droppedHeaderNames(in, out http.Header) []string {
	var names []string
	for name := range in {
		if _, present := out[http.CanonicalHeaderKey(name)]; !present {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
