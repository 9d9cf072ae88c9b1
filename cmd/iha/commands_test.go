package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "keygen", "--alg", "ES256", "--kid", "k1")
	require.NoError(t, err)

	ks, err := jwtx.ParseKeySet([]byte(strings.TrimSpace(out)))
	require.NoError(t, err)
	_, err = ks.SigningKey("k1", jwtx.AlgorithmES256)
	require.NoError(t, err)

	t.Run("random kid", func(t *testing.T) {
		out, err := execute(t, "keygen", "--alg", "EdDSA")
		require.NoError(t, err)
		require.Contains(t, out, `"kid":"iha-`)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := execute(t, "keygen", "--alg", "none")
		require.Error(t, err)
	})
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "iha.db")
	t.Setenv("IHA_DATABASE_FILE", db)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "migrations applied to "+db)

	// Applying again is a no-op.
	_, err = execute(t, "migrate")
	require.NoError(t, err)
}
