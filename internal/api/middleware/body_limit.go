package middleware

import (
	"net/http"
	"strings"
)

const (
	// DefaultStandardMaxBodyBytes is the default max request body for API requests (256KB).
	DefaultStandardMaxBodyBytes = 256 * 1024
	// DefaultIngestMaxBodyBytes is the default max request body for POST .../ingest (1MB).
	DefaultIngestMaxBodyBytes = 1024 * 1024
)

// MaxBodySize returns middleware that limits request body size: ingestMax for POST .../ingest, standardMax otherwise.
// Use for methods that may have a body (POST, PUT, PATCH). GET/HEAD/DELETE are not limited.
func MaxBodySize(standardMax, ingestMax int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			max := standardMax
			if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) &&
				strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/ingest") {
				max = ingestMax
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
