package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"
)

// APIKey requires a matching X-API-Key header. An empty key disables the check.
func APIKey(key string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-API-Key")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
