package errors

import (
	"encoding/json"
	"net/http"
)

// WriteHTTPError writes a ProxyError as an HTTP JSON response. The body is
// the flat object {"error": ..., "message": ..., "target": ..., "details": ...}
// with the optional fields omitted when empty.
func WriteHTTPError(w http.ResponseWriter, err *ProxyError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	json.NewEncoder(w).Encode(err)
}
