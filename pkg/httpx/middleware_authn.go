package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// BearerVerifier checks a raw access token and returns its claims.
type BearerVerifier interface {
	VerifyBearer(ctx context.Context, token string) (jwtx.Claims, error)
}

// BearerVerifierFunc adapts a function to BearerVerifier.
type BearerVerifierFunc func(ctx context.Context, token string) (jwtx.Claims, error)

func (f BearerVerifierFunc) VerifyBearer(ctx context.Context, token string) (jwtx.Claims, error) {
	return f(ctx, token)
}

// BearerAuth rejects requests without a valid bearer token and stores the
// verified claims on the request context.
func BearerAuth(v BearerVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.VerifyBearer(ctx, raw)
			if err != nil {
				log.Warn("bearer verify failed", "err", err)
				if errors.Is(err, jwtx.ErrExpiredToken) {
					writeBearerError(w, "token expired")
					return
				}
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = WithClaims(ctx, claims)
			ctx = slogx.With(ctx, "sub", claims.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header (RFC 6750
// section 2.1). The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteOAuth2Error(w, http.StatusUnauthorized, "invalid_token", desc)
}
