package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestNewClaims(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("subject defaults to client id", func(t *testing.T) {
		c := jwtx.NewClaims(jwtx.ClaimsOptions{
			Issuer:   "https://iha.example",
			ClientID: "test",
			TTL:      time.Hour,
			Now:      now,
		})

		require.Equal(t, "https://iha.example", c.Issuer())
		require.Equal(t, "test", c.Subject())
		require.Equal(t, []string{"test"}, c.Audience())
		require.Equal(t, now.Unix(), c[jwtx.ClaimIssuedAt])
		require.Equal(t, now.Add(time.Hour).Unix(), c[jwtx.ClaimExpiresAt])
		require.NotEmpty(t, c[jwtx.ClaimID])
		require.NotContains(t, c, jwtx.ClaimNonce)
	})

	t.Run("explicit subject and nonce", func(t *testing.T) {
		c := jwtx.NewClaims(jwtx.ClaimsOptions{
			Issuer:   "iha",
			Subject:  "123",
			ClientID: "test",
			TTL:      time.Minute,
			Nonce:    "abc",
			Now:      now,
		})

		require.Equal(t, "123", c.Subject())
		require.Equal(t, "abc", c.Nonce())
	})

	t.Run("extra claims cannot override registered ones", func(t *testing.T) {
		c := jwtx.NewClaims(jwtx.ClaimsOptions{
			Issuer:   "iha",
			ClientID: "test",
			TTL:      time.Minute,
			Now:      now,
			Extra:    map[string]any{"iss": "evil", "scope": "openid"},
		})

		require.Equal(t, "iha", c.Issuer())
		require.Equal(t, "openid", c.Scope())
	})
}

func TestClaimsAudience(t *testing.T) {
	require.Equal(t, []string{"a"}, jwtx.Claims{"aud": "a"}.Audience())
	require.Equal(t, []string{"a", "b"}, jwtx.Claims{"aud": []any{"a", "b"}}.Audience())
	require.Nil(t, jwtx.Claims{}.Audience())
}

func TestRequire(t *testing.T) {
	c := jwtx.Claims{"iat": 1, "exp": 2}

	require.NoError(t, c.Require("iat", "exp"))

	err := c.Require("iat", "sub")
	require.ErrorIs(t, err, jwtx.ErrMissingClaim)

	var missing *jwtx.MissingClaimError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "sub", missing.Name)
}
