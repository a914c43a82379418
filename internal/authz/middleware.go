package authz

import (
	"net/http"

	"github.com/stanstork/alert-api/internal/models"
)

// RequireRole returns a middleware that ensures the requester has at least the required role tier.
func RequireRole(required models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromRequest(r)
			if !ok || !models.HasAtLeast(role, required) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
