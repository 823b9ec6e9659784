package proxy

import (
	"net"
	"net/http"
	"time"
)

// NewTransport creates the http.Transport used for upstream requests.
// Compression is disabled so bodies pass through byte-for-byte: the
// transport must neither negotiate gzip on its own nor decompress what
// the upstream sends. The response header timeout does not bound the
// body, so long-lived streaming responses are unaffected.
func NewTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		DisableCompression:    true,
	}
}
