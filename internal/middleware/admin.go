package middleware

import (
	"net/http"

	"github.com/carsharing/backend/internal/contextkeys"
	"github.com/carsharing/backend/internal/handler"
)

// ManagerOnly rejects callers without the MANAGER role.
// Must be used AFTER Auth middleware which stores the principal in context.
func ManagerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !contextkeys.Principal(r.Context()).IsManager() {
			handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: manager access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
