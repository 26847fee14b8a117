package auth

import "context"

type principalContextKey struct{}

type tokenContextKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}

// ContextWithToken stores the verified token in ctx.
func ContextWithToken(ctx context.Context, tok VerifiedToken) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, tok)
}

// TokenFromContext returns the verified token of the current request.
func TokenFromContext(ctx context.Context) (VerifiedToken, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(VerifiedToken)
	return tok, ok
}
