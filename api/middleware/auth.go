package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/api/responses"
	"github.com/kzarre/kzarre-backend/internal/rbac"
	pkgauth "github.com/kzarre/kzarre-backend/pkg/auth"
	"github.com/kzarre/kzarre-backend/pkg/auth/session"
	"github.com/kzarre/kzarre-backend/pkg/config"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
)

// CapabilityResolver loads the effective capability set for an admin.
type CapabilityResolver interface {
	EffectiveCapabilities(ctx context.Context, adminID uuid.UUID) (rbac.Set, error)
}

// Auth validates a bearer token, checks the session is still live and seeds
// the request context with the admin identity and capabilities.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, resolver CapabilityResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxAdminID, claims.AdminID.String())
			ctx = context.WithValue(ctx, ctxAdminEmail, claims.Email)
			ctx = context.WithValue(ctx, ctxRole, claims.RoleName)

			set := rbac.NewSet()
			if claims.IsSuperAdmin {
				set = rbac.SuperAdminSet()
			} else if resolver != nil {
				set, err = resolver.EffectiveCapabilities(ctx, claims.AdminID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve capabilities"))
					return
				}
			}
			ctx = WithCapabilities(ctx, set.Strings(), set.IsSuper())

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"admin_id": claims.AdminID.String(),
					"role":     claims.RoleName,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
