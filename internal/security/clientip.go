package security

import (
	"net"
	"net/netip"
	"strings"
)

// TrustedClientIP resolves the client address used for rate limiting,
// forwarding headers, and audit records. With no trusted proxies the
// connection's remote address always wins: X-Forwarded-For is
// caller-controlled and cannot be believed. With trusted proxies
// configured, the X-Forwarded-For chain is walked right to left and the
// first hop that is not a trusted proxy is the client.
func TrustedClientIP(remoteAddr, xForwardedFor string, trustedProxies []string) string {
	remote := hostOnly(remoteAddr)
	if len(trustedProxies) == 0 || xForwardedFor == "" {
		return remote
	}

	trusted := trustedPrefixes(trustedProxies)

	hops := strings.Split(xForwardedFor, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			continue
		}
		if !addrInPrefixes(addr.Unmap(), trusted) {
			return hop
		}
	}

	// Every hop is one of our own proxies; fall back to the connection.
	return remote
}

// hostOnly drops the port from a listener-provided remote address.
func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// trustedPrefixes parses CIDR or bare-IP entries; a bare IP becomes a
// single-address prefix. Malformed entries are skipped here because
// config validation already rejects them at load time.
func trustedPrefixes(entries []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			a = a.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return prefixes
}

func addrInPrefixes(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
