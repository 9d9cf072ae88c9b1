package cryptox_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func parsePKCS8(t *testing.T, pemBytes []byte) any {
	t.Helper()

	block, rest := pem.Decode(pemBytes)
	require.NotNil(t, block)
	require.Empty(t, rest)
	require.Equal(t, "PRIVATE KEY", block.Type)

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	return key
}

func TestGenerateRSAKey(t *testing.T) {
	pemBytes, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	key, ok := parsePKCS8(t, pemBytes).(*rsa.PrivateKey)
	require.True(t, ok)
	require.Equal(t, 2048, key.N.BitLen())

	_, err = cryptox.GenerateRSAKey(1024)
	require.ErrorContains(t, err, "at least 2048 bits")
}

func TestGenerateECDSAKey(t *testing.T) {
	for _, curve := range []elliptic.Curve{elliptic.P256(), elliptic.P384()} {
		t.Run(curve.Params().Name, func(t *testing.T) {
			pemBytes, err := cryptox.GenerateECDSAKey(curve)
			require.NoError(t, err)

			key, ok := parsePKCS8(t, pemBytes).(*ecdsa.PrivateKey)
			require.True(t, ok)
			require.Equal(t, curve.Params().Name, key.Curve.Params().Name)
		})
	}
}

func TestGenerateEd25519Key(t *testing.T) {
	a, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	b, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	key, ok := parsePKCS8(t, a).(ed25519.PrivateKey)
	require.True(t, ok)
	require.Len(t, key, ed25519.PrivateKeySize)
}
