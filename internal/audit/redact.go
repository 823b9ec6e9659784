package audit

import (
	"net/http"
	"strings"
)

// sensitiveHeaders lists header names whose values must never appear in
// logs verbatim. Lookup is by lowercase name.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
}

// RedactValue masks a sensitive header value, keeping a short prefix so
// operators can still tell credentials apart in debug output.
func RedactValue(value string) string {
	if len(value) > 8 {
		return value[:4] + "***"
	}
	return "***"
}

// RedactHeaders returns a loggable copy of the headers with sensitive
// values masked. Multi-valued headers are joined with ", " the way they
// would appear on the wire.
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		joined := strings.Join(values, ", ")
		if sensitiveHeaders[strings.ToLower(name)] {
			joined = RedactValue(joined)
		}
		out[name] = joined
	}
	return out
}
