package auth

import "net/http"

// WithAuthMetadata is HTTP middleware that copies request headers into the
// context as transport metadata, so authenticators can reach credentials
// like Authorization and X-API-Key.
//
// Usage:
//
//	mux.Handle("/api", auth.WithAuthMetadata(apiHandler))
func WithAuthMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithMetadata(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
