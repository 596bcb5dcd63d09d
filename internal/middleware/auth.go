package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"dynquery/internal/domain"
)

// Authenticate validates the Bearer token and stores the caller as a
// domain.ContextUser. The token subject becomes the user id that connection
// records and export jobs are keyed by. Returns 401 on any failure.
func Authenticate(validator JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "missing bearer token")
				return
			}
			claims, err := validator.Validate(r.Context(), strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}
			if claims.Subject == "" {
				writeUnauthorized(w, "token has no subject")
				return
			}
			user := domain.ContextUser{ID: claims.Subject}
			if claims.Email != nil {
				user.Email = *claims.Email
			}
			next.ServeHTTP(w, r.WithContext(domain.WithUser(r.Context(), user)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized: " + msg})
}
