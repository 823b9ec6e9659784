package proxy

import (
	"net/http"
	"strings"

	"github.com/passage-proxy/passage/internal/config"
)

// BuildRequestHeaders assembles the header set sent to the upstream.
// Three passes, in order:
//
//  1. Allow-listed inbound headers are copied, first value only.
//  2. Remaining inbound x-* headers are copied unless already present.
//  3. Forwarding headers are set unconditionally, replacing anything the
//     client supplied.
//
// Headers outside the allow-list (cookies included) never reach the
// upstream.
func BuildRequestHeaders(dst http.Header, r *http.Request, tgt *config.Target, clientIP string) {
	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}
		if tgt.AllowsHeader(name) {
			dst.Set(name, values[0])
		}
	}

	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(name), "x-") {
			continue
		}
		if _, present := dst[http.CanonicalHeaderKey(name)]; !present {
			dst.Set(name, values[0])
		}
	}

	dst.Set("X-Forwarded-For", clientIP)
	dst.Set("X-Forwarded-Proto", requestScheme(r))
	dst.Set("X-Forwarded-Host", r.Host)
}

// requestScheme reports the scheme the client used to reach the proxy.
func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// requestOrigin reconstructs the origin clients used to reach the proxy,
// e.g. "https://proxy.example.com".
func requestOrigin(r *http.Request) string {
	return requestScheme(r) + "://" + r.Host
}
