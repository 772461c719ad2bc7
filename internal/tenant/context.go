package tenant

import "context"

type idContextKey struct{}

// ContextWithID attaches the resolved tenant id to the context.
func ContextWithID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, idContextKey{}, id)
}

// IDFromContext returns the tenant id previously attached by the resolver or
// the identity loader.
func IDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(idContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
