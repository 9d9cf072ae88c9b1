package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aussiebroadwan/iha/pkg/httpx"
	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("a"), mark("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRecover(t *testing.T) {
	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), httpx.Recover())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "server_error")
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"valid":        {"Bearer abc.def.ghi", "abc.def.ghi", true},
		"lower scheme": {"bearer abc", "abc", true},
		"basic":        {"Basic dGVzdDp0ZXN0", "", false},
		"empty token":  {"Bearer   ", "", false},
		"missing":      {"", "", false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			token, ok := httpx.BearerToken(req)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.token, token)
		})
	}
}

func TestBearerAuth(t *testing.T) {
	verifier := httpx.BearerVerifierFunc(func(_ context.Context, token string) (jwtx.Claims, error) {
		switch token {
		case "good":
			return jwtx.Claims{"sub": "123", "scope": "openid profile"}, nil
		case "old":
			return nil, jwtx.ErrExpiredToken
		default:
			return nil, errors.New("bad signature")
		}
	})

	protected := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(httpx.SubjectFromContext(r.Context())))
	}), httpx.BearerAuth(verifier))

	send := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/oauth2/userinfo", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec
	}

	t.Run("valid token", func(t *testing.T) {
		rec := send("Bearer good")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "123", rec.Body.String())
	})

	t.Run("missing token", func(t *testing.T) {
		rec := send("")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
	})

	t.Run("expired token", func(t *testing.T) {
		rec := send("Bearer old")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "token expired")
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := send("Bearer forged")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "verification failed")
	})
}

func TestScopeMiddleware(t *testing.T) {
	withScope := func(scope string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(httpx.WithClaims(req.Context(), jwtx.Claims{"scope": scope}))
	}

	serve := func(mw httpx.Middleware, req *http.Request) int {
		rec := httptest.NewRecorder()
		httpx.Chain(okHandler, mw).ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, serve(httpx.RequireAnyScope("email", "openid"), withScope("openid profile")))
	require.Equal(t, http.StatusForbidden, serve(httpx.RequireAnyScope("email"), withScope("openid profile")))
	require.Equal(t, http.StatusForbidden,
		serve(httpx.RequireAnyScope("openid"), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestRedirectURL(t *testing.T) {
	params := url.Values{"code": {"xyz"}, "state": {"s1"}}

	t.Run("query keeps existing params", func(t *testing.T) {
		got, err := httpx.RedirectURL("https://app.example/cb?tenant=a", params, false)
		require.NoError(t, err)

		u, err := url.Parse(got)
		require.NoError(t, err)
		require.Equal(t, "a", u.Query().Get("tenant"))
		require.Equal(t, "xyz", u.Query().Get("code"))
		require.Equal(t, "s1", u.Query().Get("state"))
	})

	t.Run("fragment", func(t *testing.T) {
		got, err := httpx.RedirectURL("https://app.example/cb", params, true)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(got, "https://app.example/cb#"))

		frag, err := url.ParseQuery(strings.SplitN(got, "#", 2)[1])
		require.NoError(t, err)
		require.Equal(t, "xyz", frag.Get("code"))
	})

	t.Run("invalid target", func(t *testing.T) {
		_, err := httpx.RedirectURL("://nope", params, false)
		require.Error(t, err)
	})
}
