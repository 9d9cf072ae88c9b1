package httpx

import (
	"context"

	"github.com/aussiebroadwan/iha/pkg/jwtx"
)

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

// WithClaims stores verified bearer claims on ctx.
func WithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// ClaimsFromContext returns the claims stored by BearerAuth.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(jwtx.Claims)
	return c, ok
}

// SubjectFromContext returns the bearer token's sub, or "".
func SubjectFromContext(ctx context.Context) string {
	c, _ := ClaimsFromContext(ctx)
	return c.Subject()
}

func scopesFromCtx(ctx context.Context) []string {
	c, _ := ClaimsFromContext(ctx)
	return ParseSpaceDelimitedFields(c.Scope())
}
