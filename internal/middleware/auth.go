package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dritonf/cerdhe/internal/auth"
	"github.com/dritonf/cerdhe/internal/token"
)

// RequireAuth extracts and verifies the bearer token and populates the
// request context with the caller's principal. The wire contract is fixed:
// a missing token is 401 "Token not set", anything unverifiable is 403
// "Token not valid".
func RequireAuth(issuer *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := token.FromHeader(r)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Token not set")
				return
			}

			p, err := issuer.Verify(raw)
			if err != nil {
				writeMessage(w, http.StatusForbidden, "Token not valid")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole permits the request only when the principal's role is in the
// allowed set. It assumes RequireAuth already ran; a request with no
// principal is denied.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Token not set")
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				writeMessage(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
