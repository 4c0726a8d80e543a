package middleware

import "context"

type contextKey string

const (
	ctxAdminID      contextKey = "admin_id"
	ctxAdminEmail   contextKey = "admin_email"
	ctxRole         contextKey = "role"
	ctxSuperAdmin   contextKey = "super_admin"
	ctxCapabilities contextKey = "capabilities"
)

func AdminIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAdminID).(string); ok {
		return v
	}
	return ""
}

func AdminEmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAdminEmail).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func IsSuperAdminFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	if v, ok := ctx.Value(ctxSuperAdmin).(bool); ok {
		return v
	}
	return false
}

func CapabilitiesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxCapabilities).([]string); ok {
		return v
	}
	return nil
}

// WithAdminID injects the admin identifier into the context.
func WithAdminID(ctx context.Context, adminID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAdminID, adminID)
}

// WithCapabilities injects the resolved capability list for downstream checks.
func WithCapabilities(ctx context.Context, caps []string, super bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSuperAdmin, super)
	return context.WithValue(ctx, ctxCapabilities, caps)
}
