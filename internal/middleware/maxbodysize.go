package middleware

import "net/http"

// NewMaxBodySizeHandler returns a middleware that caps incoming request bodies
// at limit bytes. The API surface is read-only, so any sizeable body is a
// client mistake; bodies declared over the limit are rejected with 413 before
// the handler runs, and undeclared bodies are wrapped with http.MaxBytesReader
// so a read past the limit fails instead of buffering unbounded input.
func NewMaxBodySizeHandler(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
