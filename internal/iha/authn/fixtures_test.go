package authn_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store/drivers/sqlite"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const (
	adminPassword = "correct horse"
	clientSecret  = "s3cret"
)

// newTestStore seeds the accounts and clients the tests below rely on.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	hash, err := cryptox.HashPassword(adminPassword)
	require.NoError(t, err)

	users := []domain.UserDetails{
		{ID: "123", Principal: "admin", Credentials: hash, Authorities: []string{"admin"}},
		{ID: "200", Principal: "disabled", Credentials: hash, Disabled: true},
		{ID: "201", Principal: "locked", Credentials: hash, Locked: true},
		{ID: "202", Principal: "both", Credentials: hash, Disabled: true, Locked: true},
	}
	for _, u := range users {
		require.NoError(t, s.Users().CreateUser(ctx, u))
	}

	secretHash, err := cryptox.HashPassword(clientSecret)
	require.NoError(t, err)

	clients := []domain.ClientDetails{
		{
			AppID:         "app-test",
			ClientID:      "test",
			SecretHash:    secretHash,
			Scopes:        []string{"openid", "profile"},
			ResponseTypes: []string{"code"},
			GrantTypes:    []string{domain.GrantClientCredentials},
		},
		{AppID: "app-spa", ClientID: "spa", Scopes: []string{"openid"}},
	}
	for _, c := range clients {
		require.NoError(t, s.Clients().CreateClient(ctx, c))
	}

	return s
}

func usernameParam(principal, password string) domain.RequestParameter {
	return domain.NewRequestParameter(map[string]any{
		domain.ParamType:        "username",
		domain.ParamPrincipal:   principal,
		domain.ParamCredentials: password,
		domain.ParamClientID:    "test",
	})
}
