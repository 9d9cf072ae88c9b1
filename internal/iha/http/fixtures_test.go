package http_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/authz"
	"github.com/aussiebroadwan/iha/internal/iha/domain"
	ihahttp "github.com/aussiebroadwan/iha/internal/iha/http"
	"github.com/aussiebroadwan/iha/internal/iha/store/drivers/sqlite"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/aussiebroadwan/iha/pkg/ihasdk"
	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	adminPassword = "correct horse"
	webSecret     = "s3cret"
	webRedirect   = "https://app.test/cb"
	spaRedirect   = "https://spa.test/cb"
	globalKID     = "global"
)

type testServer struct {
	*httptest.Server
	store *sqlite.Store
	sdk   *ihasdk.Client
}

// newTestServer serves a router over a seeded sqlite store. The issuer is
// the server URL so discovery based clients accept the tokens.
//
// Clients, both auto-approved: "web" (confidential, every grant and response type, scopes
// openid profile email) and "spa" (public, code with required PKCE).
// Users: 123/admin and 200/disabled, both with adminPassword.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	jwks, err := jwtx.GenerateJWKS(jwtx.AlgorithmES256, globalKID, 0)
	require.NoError(t, err)
	require.NoError(t, s.JwtConfigs().PutJwtConfig(ctx, domain.JwtConfig{
		KeyID:     globalKID,
		JWKS:      jwks,
		Algorithm: jwtx.AlgorithmES256,
	}))

	secretHash, err := cryptox.HashPassword(webSecret)
	require.NoError(t, err)
	clients := []domain.ClientDetails{
		{
			AppID:        "app-web",
			ClientID:     "web",
			SecretHash:   secretHash,
			Scopes:       []string{"openid", "profile", "email"},
			RedirectURIs: []string{webRedirect},
			ResponseTypes: []string{
				"code", "token", "id_token",
				"code id_token", "id_token token", "code id_token token",
			},
			GrantTypes: []string{
				domain.GrantAuthorizationCode,
				domain.GrantClientCredentials,
				domain.GrantPassword,
			},
			AutoApprove: true,
		},
		{
			AppID:           "app-spa",
			ClientID:        "spa",
			Scopes:          []string{"openid", "profile"},
			RedirectURIs:    []string{spaRedirect},
			ResponseTypes:   []string{"code"},
			GrantTypes:      []string{domain.GrantAuthorizationCode},
			RequireProofKey: true,
			AutoApprove:     true,
		},
	}
	for _, c := range clients {
		require.NoError(t, s.Clients().CreateClient(ctx, c))
	}

	passwordHash, err := cryptox.HashPassword(adminPassword)
	require.NoError(t, err)
	users := []domain.UserDetails{
		{
			ID:          "123",
			Principal:   "admin",
			Credentials: passwordHash,
			Claims: map[string]any{
				"name":  "Admin User",
				"email": "admin@example.com",
			},
		},
		{ID: "200", Principal: "disabled", Credentials: passwordHash, Disabled: true},
	}
	for _, u := range users {
		require.NoError(t, s.Users().CreateUser(ctx, u))
	}

	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	registry := authn.NewRegistry()
	registry.Add(authn.TypeUsername, &authn.UsernameProcessor{Users: s.Users()})
	registry.Add(authn.TypeClient, &authn.ClientProcessor{Clients: s.Clients()})

	reg := prometheus.NewRegistry()
	metrics, err := authn.NewMetricsHook(reg)
	require.NoError(t, err)
	pipeline := authn.NewPipeline()
	require.NoError(t, pipeline.Register(authn.AuditHook{}, metrics))

	tokens := &authz.TokenIssuer{
		Issuer: srv.URL,
		Codec:  jwtx.NewCodec(),
		Keys:   s.JwtConfigs(),
	}

	router := ihahttp.NewRouter(srv.URL, "test", s, reg, slog.New(slog.DiscardHandler))
	router.Manager = authn.NewManager(registry, pipeline)
	router.Builder = authz.NewBuilder(tokens, s.AuthorizationCodes(), s.Users(), s.Approvals())
	router.Tokens = tokens
	router.ApplyRoutes()
	handler = router

	return &testServer{Server: srv, store: s, sdk: ihasdk.NewClient(srv.URL)}
}

// authorize sends the authorization request in authURL with the admin
// credentials added and returns the redirect target.
func (s *testServer) authorize(t *testing.T, authURL string, login url.Values) *url.URL {
	t.Helper()

	u, err := url.Parse(authURL)
	require.NoError(t, err)

	form := u.Query()
	for k, vs := range login {
		form[k] = vs
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost,
		s.URL+u.Path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	noRedirect := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := noRedirect.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return location
}

func adminLogin() url.Values {
	return url.Values{"username": {"admin"}, "password": {adminPassword}}
}

func postForm(t *testing.T, target, contentType string, form url.Values) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func requireOAuth2Error(t *testing.T, err error, code string) *ihasdk.OAuth2Error {
	t.Helper()

	require.Error(t, err)
	var oerr *ihasdk.OAuth2Error
	require.True(t, errors.As(err, &oerr), "want *ihasdk.OAuth2Error, got %T: %v", err, err)
	require.Equal(t, code, oerr.Code)
	return oerr
}
