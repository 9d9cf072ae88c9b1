package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func seedConfig(t *testing.T) Config {
	t.Helper()

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	cfg.DatabaseFile = ":memory:"
	cfg.Upstreams = nil
	return cfg
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	db, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := seedConfig(t)
	keyClients, err := Seed(ctx, db, cfg, logger)
	require.NoError(t, err)
	require.Equal(t, []string{"web"}, keyClients)

	t.Run("global key generated", func(t *testing.T) {
		global, err := db.JwtConfigs().GetJwtConfig(ctx, "")
		require.NoError(t, err)
		require.Equal(t, "main", global.KeyID)
		require.Equal(t, jwtx.AlgorithmES256, global.Algorithm)

		ks, err := jwtx.ParseKeySet(global.JWKS)
		require.NoError(t, err)
		_, err = ks.SigningKey("main", jwtx.AlgorithmES256)
		require.NoError(t, err)
	})

	t.Run("client key overrides global", func(t *testing.T) {
		own, err := db.JwtConfigs().GetJwtConfig(ctx, "web")
		require.NoError(t, err)
		require.Equal(t, "web", own.ClientID)
		require.Equal(t, "web-key", own.KeyID)

		fallback, err := db.JwtConfigs().GetJwtConfig(ctx, "spa")
		require.NoError(t, err)
		require.Equal(t, "main", fallback.KeyID)
	})

	t.Run("clients", func(t *testing.T) {
		web, err := db.Clients().GetByClientID(ctx, "web")
		require.NoError(t, err)
		require.False(t, web.IsPublic())
		require.NoError(t, cryptox.VerifyPassword("s3cret", web.SecretHash))
		require.Equal(t, "web", web.AppID)
		require.True(t, web.AutoApprove)

		spa, err := db.Clients().GetByClientID(ctx, "spa")
		require.NoError(t, err)
		require.True(t, spa.IsPublic())
		require.True(t, spa.RequireProofKey)
		require.False(t, spa.AutoApprove)
		require.Equal(t, []string{domain.GrantAuthorizationCode}, spa.GrantTypes)
		require.Equal(t, []string{"code"}, spa.ResponseTypes)
	})

	t.Run("users and linked identities", func(t *testing.T) {
		alice, err := db.Users().LoadByType(ctx, "alice", domain.PrincipalUsername, "")
		require.NoError(t, err)
		require.Equal(t, "u1", alice.ID)
		require.NoError(t, cryptox.VerifyPassword("wonderland", alice.Credentials))
		require.Equal(t, []string{"admin"}, alice.Authorities)

		linked, err := db.Users().FromToken(ctx, "id_token", "", map[string]any{
			"iss": "https://accounts.example.org",
			"sub": "alice-upstream",
		})
		require.NoError(t, err)
		require.Equal(t, "u1", linked.ID)
	})

	t.Run("reseeding keeps existing rows and keys", func(t *testing.T) {
		before, err := db.JwtConfigs().GetJwtConfig(ctx, "")
		require.NoError(t, err)

		again, err := Seed(ctx, db, cfg, logger)
		require.NoError(t, err)
		require.Equal(t, []string{"web"}, again)

		after, err := db.JwtConfigs().GetJwtConfig(ctx, "")
		require.NoError(t, err)
		require.Equal(t, before.JWKS, after.JWKS)
	})
}

func TestSeedJWKSFile(t *testing.T) {
	ctx := context.Background()

	db, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	raw, err := jwtx.GenerateJWKS(jwtx.AlgorithmRS256, "file-key", 0)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "jwks.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg := Config{Global: JwtSeed{KeyID: "file-key", JWKSFile: path}}
	_, err = Seed(ctx, db, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	global, err := db.JwtConfigs().GetJwtConfig(ctx, "")
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(global.JWKS))

	t.Run("unreadable file", func(t *testing.T) {
		cfg := Config{Global: JwtSeed{KeyID: "k", JWKSFile: filepath.Join(t.TempDir(), "nope.json")}}
		_, err := Seed(ctx, db, cfg, slog.New(slog.DiscardHandler))
		require.ErrorContains(t, err, "jwks file")
	})
}
