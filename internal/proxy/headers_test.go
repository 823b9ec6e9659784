package proxy

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/passage-proxy/passage/internal/config"
)

// headerTarget builds a Target with an explicit allow-list.
func headerTarget(t *testing.T, allowed []string) *config.Target {
	t.Helper()
	cfg := &config.Config{}
	cfg.Upstream.TargetURL = "http://upstream.example.com"
	cfg.Upstream.AllowedHeaders = allowed
	config.ApplyDefaults(cfg)
	tgt, err := cfg.ResolveTarget()
	if err != nil {
		t.Fatalf("resolving target: %v", err)
	}
	return tgt
}

func TestBuildRequestHeaders_AllowListCopy(t *testing.T) {
	tgt := headerTarget(t, []string{"authorization", "accept"})

	r := httptest.NewRequest(http.MethodGet, "http://passage/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	r.Header.Set("Accept", "application/json")
	r.Header.Set("Cookie", "session=1")
	r.Header.Set("Referer", "http://other.example.com")

	dst := make(http.Header)
	BuildRequestHeaders(dst, r, tgt, "192.0.2.1")

	if got := dst.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("Authorization = %q, want copied value", got)
	}
	if got := dst.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want copied value", got)
	}
	if got := dst.Get("Cookie"); got != "" {
		t.Errorf("Cookie = %q, want dropped", got)
	}
	if got := dst.Get("Referer"); got != "" {
		t.Errorf("Referer = %q, want dropped", got)
	}
}

func TestBuildRequestHeaders_FirstValueOnly(t *testing.T) {
	tgt := headerTarget(t, []string{"accept-language"})

	r := httptest.NewRequest(http.MethodGet, "http://passage/", nil)
	r.Header.Add("Accept-Language", "en-US")
	r.Header.Add("Accept-Language", "ko-KR")

	dst := make(http.Header)
	BuildRequestHeaders(dst, r, tgt, "192.0.2.1")

	values := dst.Values("Accept-Language")
	if len(values) != 1 || values[0] != "en-US" {
		t.Errorf("Accept-Language = %v, want [en-US]", values)
	}
}

func TestBuildRequestHeaders_XHeadersPassThrough(t *testing.T) {
	tgt := headerTarget(t, []string{"authorization"})

	r := httptest.NewRequest(http.MethodGet, "http://passage/", nil)
	r.Header.Set("X-Trace-Id", "trace-9")
	r.Header.Set("X-Tenant", "acme")

	dst := make(http.Header)
	BuildRequestHeaders(dst, r, tgt, "192.0.2.1")

	if got := dst.Get("X-Trace-Id"); got != "trace-9" {
		t.Errorf("X-Trace-Id = %q, want forwarded", got)
	}
	if got := dst.Get("X-Tenant"); got != "acme" {
		t.Errorf("X-Tenant = %q, want forwarded", got)
	}
}

func TestBuildRequestHeaders_XHeaderDoesNotClobberAllowListed(t *testing.T) {
	// x-api-key sits in both passes when allow-listed; the first pass wins
	// and the second must not overwrite it.
	tgt := headerTarget(t, []string{"x-api-key"})

	r := httptest.NewRequest(http.MethodGet, "http://passage/", nil)
	r.Header.Set("X-API-Key", "key-123")

	dst := make(http.Header)
	BuildRequestHeaders(dst, r, tgt, "192.0.2.1")

	values := dst.Values("X-Api-Key")
	if len(values) != 1 || values[0] != "key-123" {
		t.Errorf("X-API-Key = %v, want single copied value", values)
	}
}

func TestBuildRequestHeaders_ForwardingHeadersAlwaysWin(t *testing.T) {
	tgt := headerTarget(t, nil)

	r := httptest.NewRequest(http.MethodGet, "http://proxy.example.com/api", nil)
	r.Host = "proxy.example.com"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "spoofed.example.com")

	dst := make(http.Header)
	BuildRequestHeaders(dst, r, tgt, "203.0.113.9")

	if got := dst.Get("X-Forwarded-For"); got != "203.0.113.9" {
		t.Errorf("X-Forwarded-For = %q, want caller address", got)
	}
	if got := dst.Get("X-Forwarded-Proto"); got != "http" {
		t.Errorf("X-Forwarded-Proto = %q, want actual scheme", got)
	}
	if got := dst.Get("X-Forwarded-Host"); got != "proxy.example.com" {
		t.Errorf("X-Forwarded-Host = %q, want actual inbound host", got)
	}
}

func TestRequestScheme(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "http://passage/", nil)
	if got := requestScheme(plain); got != "http" {
		t.Errorf("scheme = %q, want http", got)
	}

	secure := httptest.NewRequest(http.MethodGet, "https://passage/", nil)
	secure.TLS = &tls.ConnectionState{}
	if got := requestScheme(secure); got != "https" {
		t.Errorf("scheme = %q, want https", got)
	}
}

func TestRequestOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://proxy.example.com:8080/deep/path?q=1", nil)
	r.Host = "proxy.example.com:8080"
	if got := requestOrigin(r); got != "http://proxy.example.com:8080" {
		t.Errorf("origin = %q, want scheme and host only", got)
	}
}
