package auth

import "context"

type identityContextKey struct{}
type tokenContextKey struct{}

// ContextWithIdentity attaches the hydrated identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithToken stores the raw bearer token inside the context so a later
// logout can blacklist exactly what was presented.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
