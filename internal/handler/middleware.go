package handler

import (
	"net/http"
	"strings"

	"github.com/BuzzLyutic/taskmaster/internal/auth"
	"github.com/BuzzLyutic/taskmaster/pkg/respond"
)

// Authenticator requires a bearer access token and puts the principal on the
// request context.
func Authenticator(gw *auth.Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respond.Error(w, r, http.StatusUnauthorized, "bearer token required")
				return
			}

			p, err := gw.Authenticate(r.Context(), token)
			if err != nil {
				respond.Error(w, r, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
