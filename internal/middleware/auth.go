package middleware

import (
	"net/http"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/httpx"
)

// RequireUser rejects API requests without a session user with 401 JSON.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserIDFromContext(r.Context()); !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
