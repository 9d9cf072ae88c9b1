package authz_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/authz"
	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store/drivers/sqlite"
	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://iha.test"
	testRedirect = "https://app.test/cb"
	globalKID    = "global"
)

var allResponseTypes = []string{
	"code", "token", "id_token",
	"code token", "code id_token", "id_token token", "code id_token token",
}

type fixture struct {
	store   *sqlite.Store
	builder *authz.Builder
	tokens  *authz.TokenIssuer
	client  domain.ClientDetails
	user    domain.UserDetails
	jwks    []byte
}

// newFixture seeds client "test" (openid profile) and user 123/admin, with
// an ES256 global signing key.
func newFixture(t *testing.T) *fixture {
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

	client := domain.ClientDetails{
		AppID:         "app-test",
		ClientID:      "test",
		SecretHash:    "unused",
		Scopes:        []string{"openid", "profile"},
		RedirectURIs:  []string{testRedirect},
		ResponseTypes: allResponseTypes,
		GrantTypes:    []string{domain.GrantAuthorizationCode, domain.GrantClientCredentials},
		AutoApprove:   true,
	}
	require.NoError(t, s.Clients().CreateClient(ctx, client))

	user := domain.UserDetails{
		ID:        "123",
		Principal: "admin",
		Claims: map[string]any{
			"name":  "Admin User",
			"email": "admin@example.com",
		},
	}
	require.NoError(t, s.Users().CreateUser(ctx, user))

	tokens := &authz.TokenIssuer{
		Issuer: testIssuer,
		Codec:  jwtx.NewCodec(),
		Keys:   s.JwtConfigs(),
	}

	return &fixture{
		store:   s,
		builder: authz.NewBuilder(tokens, s.AuthorizationCodes(), s.Users(), s.Approvals()),
		tokens:  tokens,
		client:  client,
		user:    user,
		jwks:    jwks,
	}
}

func (f *fixture) verify(t *testing.T, token string) jwtx.Claims {
	t.Helper()
	claims, err := f.tokens.Codec.Verify(token, globalKID, f.jwks, jwtx.AlgorithmES256)
	require.NoError(t, err)
	return claims
}

func authorizeParam(responseType, scope string, extra map[string]any) domain.RequestParameter {
	m := map[string]any{
		domain.ParamResponseType: responseType,
		domain.ParamClientID:     "test",
		domain.ParamRedirectURI:  testRedirect,
		domain.ParamScope:        scope,
		domain.ParamState:        "xyz",
	}
	for k, v := range extra {
		m[k] = v
	}
	return domain.NewRequestParameter(m)
}

func keys(r authz.Result) []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

func past(d time.Duration) func() time.Time {
	return func() time.Time { return time.Now().Add(-d) }
}
