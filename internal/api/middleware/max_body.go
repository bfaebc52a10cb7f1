package middleware

import (
	"net/http"

	"github.com/danielbwilkinson/jargon-rag/internal/api"
)

// DefaultMaxBodyBytes bounds a request carrying a long conversation history.
const DefaultMaxBodyBytes int64 = 1 << 20

// MaxBodyBytes rejects declared oversized bodies up front and caps the rest.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
