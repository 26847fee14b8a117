package tenancy

import "context"

type companyContextKey struct{}

// ContextWithCompany stores the bound company in ctx.
func ContextWithCompany(ctx context.Context, c *CompanyContext) context.Context {
	return context.WithValue(ctx, companyContextKey{}, c)
}

// CompanyFromContext returns the bound company; nil in cross-tenant mode.
func CompanyFromContext(ctx context.Context) (*CompanyContext, bool) {
	c, ok := ctx.Value(companyContextKey{}).(*CompanyContext)
	return c, ok && c != nil
}
