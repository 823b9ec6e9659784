package proxy

import (
	"net/http"
	"strings"

	"github.com/passage-proxy/passage/internal/config"
)

// standardResponseHeaders are the upstream response headers relayed to
// clients. Everything outside this set and the x-* namespace is dropped,
// Set-Cookie and Content-Encoding included.
var standardResponseHeaders = map[string]struct{}{
	"content-type":   {},
	"content-length": {},
	"content-range":  {},
	"accept-ranges":  {},
	"cache-control":  {},
	"etag":           {},
	"last-modified":  {},
	"location":       {},
}

// corsDefaults are applied to every response where neither the upstream
// relay nor the operator's custom headers produced a value.
var corsDefaults = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS, HEAD, PATCH",
	"Access-Control-Allow-Headers": "Authorization, Content-Type, X-Requested-With, X-API-Key, X-Auth-Token",
}

// BuildResponseHeaders assembles the header set returned to the client.
// Four passes, in order:
//
//  1. Standard upstream headers are copied, first value only.
//  2. Upstream x-* headers are copied unless already present.
//  3. Operator custom headers overwrite whatever the upstream sent.
//  4. CORS defaults fill any of the three Access-Control-* names still
//     absent.
func BuildResponseHeaders(dst, src http.Header, tgt *config.Target) {
	for name, values := range src {
		if len(values) == 0 {
			continue
		}
		if _, ok := standardResponseHeaders[strings.ToLower(name)]; ok {
			dst.Set(name, values[0])
		}
	}

	for name, values := range src {
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

	for name, value := range tgt.CustomHeaders {
		dst.Set(name, value)
	}

	for name, value := range corsDefaults {
		if _, present := dst[http.CanonicalHeaderKey(name)]; !present {
			dst.Set(name, value)
		}
	}
}
