package proxy

import (
	"net/url"
	"strings"
)

// RewriteLocation decides whether a redirect Location should be rewritten
// to keep the client on the proxy. It returns the rewritten value and true
// when all of the following hold: the status is a 3xx, the Location is an
// absolute URL, and its origin matches the target origin. In every other
// case (relative Location, foreign origin, unparsable value) it returns
// false and the upstream value passes through untouched.
func RewriteLocation(status int, location, targetOrigin, proxyOrigin string) (string, bool) {
	if status < 300 || status > 399 || location == "" {
		return "", false
	}

	u, err := url.Parse(location)
	if err != nil || !u.IsAbs() {
		return "", false
	}

	origin := u.Scheme + "://" + u.Host
	if !strings.EqualFold(origin, targetOrigin) {
		return "", false
	}

	rewritten := proxyOrigin + u.EscapedPath()
	if u.RawQuery != "" {
		rewritten += "?" + u.RawQuery
	}
	return rewritten, true
}
