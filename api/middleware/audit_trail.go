package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/internal/audit"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/types"
)

const adminRoutePrefix = "/api/admin/v1/"

// AuditRecorder appends one admin action to the audit log.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// AuditTrail records every successful mutating admin request against the
// acting admin. Reads pass through untouched, and a failed audit write never
// fails the request it describes.
func AuditTrail(recorder AuditRecorder, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// A never-written status is an implicit 200.
			if recorder == nil || rec.status >= http.StatusMultipleChoices {
				return
			}

			actorID, err := uuid.Parse(AdminIDFromContext(r.Context()))
			if err != nil {
				return
			}

			resource, resourceID, action := auditTarget(r)
			ip := ClientIP(r)
			entry := audit.Entry{
				ActorID:    actorID,
				Action:     action,
				Resource:   resource,
				ResourceID: resourceID,
				Metadata:   types.JSONMap{"method": r.Method, "path": r.URL.Path},
			}
			if ip != "" {
				entry.IP = &ip
			}
			if rerr := recorder.Record(r.Context(), entry); rerr != nil && logg != nil {
				logg.Error(r.Context(), "record audit entry", rerr)
			}
		})
	}
}

// auditTarget derives the resource, resource id, and action name from the
// matched chi route. "/orders/{orderNumber}/cancel" becomes resource
// "orders", id from the path parameter, action "orders.cancel"; routes
// without a trailing literal fall back to the method verb.
func auditTarget(r *http.Request) (resource string, resourceID *string, action string) {
	pattern := r.URL.Path
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		pattern = rctx.RoutePattern()
	}

	trimmed := strings.Trim(strings.TrimPrefix(pattern, adminRoutePrefix), "/")
	segments := strings.Split(trimmed, "/")
	resource = segments[0]

	suffix := methodVerb(r.Method)
	if last := segments[len(segments)-1]; len(segments) > 1 && !strings.HasPrefix(last, "{") {
		suffix = last
	}
	action = resource + "." + suffix

	if rctx != nil && len(rctx.URLParams.Values) > 0 {
		if v := rctx.URLParams.Values[len(rctx.URLParams.Values)-1]; v != "" {
			resourceID = &v
		}
	}
	return resource, resourceID, action
}

func methodVerb(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
