package middleware

import (
	"net/http"

	"github.com/kzarre/kzarre-backend/api/responses"
	"github.com/kzarre/kzarre-backend/internal/rbac"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
)

// RequireCapability rejects requests whose admin lacks the capability. Super
// admins pass every check.
func RequireCapability(capability rbac.Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsSuperAdminFromContext(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			for _, granted := range CapabilitiesFromContext(r.Context()) {
				if granted == string(capability) {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions"))
		})
	}
}

// RequireSuperAdmin restricts a route to super admins.
func RequireSuperAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsSuperAdminFromContext(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "super admin required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
