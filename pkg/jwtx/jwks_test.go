package jwtx_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
)

// mustJWKS generates a single-key private JWKS document.
func mustJWKS(t *testing.T, alg, kid string) []byte {
	t.Helper()
	raw, err := jwtx.GenerateJWKS(alg, kid, 0)
	require.NoError(t, err)
	return raw
}

// joinJWKS merges the keys of several private documents into one.
func joinJWKS(t *testing.T, docs ...[]byte) []byte {
	t.Helper()
	var out jose.JSONWebKeySet
	for _, d := range docs {
		var set jose.JSONWebKeySet
		require.NoError(t, json.Unmarshal(d, &set))
		out.Keys = append(out.Keys, set.Keys...)
	}
	raw, err := json.Marshal(out)
	require.NoError(t, err)
	return raw
}

func TestGenerateJWKS(t *testing.T) {
	cases := []struct {
		alg  string
		want func(any) bool
	}{
		{jwtx.AlgorithmRS256, func(k any) bool { _, ok := k.(*rsa.PrivateKey); return ok }},
		{jwtx.AlgorithmES256, func(k any) bool { _, ok := k.(*ecdsa.PrivateKey); return ok }},
		{jwtx.AlgorithmES384, func(k any) bool { _, ok := k.(*ecdsa.PrivateKey); return ok }},
		{jwtx.AlgorithmEdDSA, func(k any) bool { _, ok := k.(ed25519.PrivateKey); return ok }},
		{jwtx.AlgorithmHS256, func(k any) bool { _, ok := k.([]byte); return ok }},
	}

	for _, tc := range cases {
		t.Run(tc.alg, func(t *testing.T) {
			ks, err := jwtx.ParseKeySet(mustJWKS(t, tc.alg, "k1"))
			require.NoError(t, err)

			key, err := ks.SigningKey("k1", tc.alg)
			require.NoError(t, err)
			require.True(t, tc.want(key))
		})
	}

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := jwtx.GenerateJWKS("none", "k1", 0)
		require.Error(t, err)
	})

	t.Run("kid required", func(t *testing.T) {
		_, err := jwtx.GenerateJWKS(jwtx.AlgorithmRS256, "", 0)
		require.Error(t, err)
	})
}

func TestParseKeySet_Rejects(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := jwtx.ParseKeySet(nil)
		require.ErrorIs(t, err, jwtx.ErrInvalidKey)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := jwtx.ParseKeySet([]byte("{nope"))
		require.ErrorIs(t, err, jwtx.ErrInvalidKey)
	})

	t.Run("key without kid", func(t *testing.T) {
		_, err := jwtx.ParseKeySet([]byte(`{"keys":[{"kty":"oct","k":"c2VjcmV0LXNlY3JldC1zZWNyZXQ"}]}`))
		require.ErrorIs(t, err, jwtx.ErrInvalidKey)
	})
}

func TestKeySetResolution(t *testing.T) {
	rsaDoc := mustJWKS(t, jwtx.AlgorithmRS256, "k1")

	t.Run("unknown kid", func(t *testing.T) {
		ks, err := jwtx.ParseKeySet(rsaDoc)
		require.NoError(t, err)

		_, err = ks.SigningKey("missing", jwtx.AlgorithmRS256)
		require.ErrorIs(t, err, jwtx.ErrInvalidKey)
		_, err = ks.VerificationKey("missing", jwtx.AlgorithmRS256)
		require.ErrorIs(t, err, jwtx.ErrInvalidKey)
	})

	t.Run("algorithm the key was not minted for", func(t *testing.T) {
		ks, err := jwtx.ParseKeySet(rsaDoc)
		require.NoError(t, err)

		_, err = ks.SigningKey("k1", jwtx.AlgorithmES256)
		require.ErrorIs(t, err, jwtx.ErrInvalidKey)
	})

	t.Run("two keys for the same kid and alg fail closed", func(t *testing.T) {
		ks, err := jwtx.ParseKeySet(joinJWKS(t, rsaDoc, mustJWKS(t, jwtx.AlgorithmRS256, "k1")))
		require.NoError(t, err)

		_, err = ks.SigningKey("k1", jwtx.AlgorithmRS256)
		require.ErrorIs(t, err, jwtx.ErrInvalidKey)
	})

	t.Run("same kid different alg resolves", func(t *testing.T) {
		ks, err := jwtx.ParseKeySet(joinJWKS(t, rsaDoc, mustJWKS(t, jwtx.AlgorithmES256, "k1")))
		require.NoError(t, err)

		_, err = ks.SigningKey("k1", jwtx.AlgorithmRS256)
		require.NoError(t, err)
		_, err = ks.SigningKey("k1", jwtx.AlgorithmES256)
		require.NoError(t, err)
	})

	t.Run("public only set cannot sign", func(t *testing.T) {
		km := jwtx.NewKeyManager()
		pub, err := km.PublicJWKS(rsaDoc)
		require.NoError(t, err)

		raw, err := jwtx.MarshalPublic(pub)
		require.NoError(t, err)

		ks, err := jwtx.ParseKeySet(raw)
		require.NoError(t, err)

		_, err = ks.SigningKey("k1", jwtx.AlgorithmRS256)
		require.ErrorIs(t, err, jwtx.ErrInvalidKey)

		key, err := ks.VerificationKey("k1", jwtx.AlgorithmRS256)
		require.NoError(t, err)
		require.IsType(t, &rsa.PublicKey{}, key)
	})
}

func TestPublicJWKS(t *testing.T) {
	km := jwtx.NewKeyManager()
	doc := joinJWKS(t,
		mustJWKS(t, jwtx.AlgorithmRS256, "rsa"),
		mustJWKS(t, jwtx.AlgorithmEdDSA, "ed"),
		mustJWKS(t, jwtx.AlgorithmHS256, "hmac"),
	)

	pub, err := km.PublicJWKS(doc)
	require.NoError(t, err)

	kids := make([]string, 0, len(pub.Keys))
	for _, k := range pub.Keys {
		require.True(t, k.IsPublic())
		kids = append(kids, k.KeyID)
	}
	require.ElementsMatch(t, []string{"rsa", "ed"}, kids)

	raw, err := jwtx.MarshalPublic(pub)
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"d"`)
}

func TestMergeJWKS(t *testing.T) {
	km := jwtx.NewKeyManager()
	a, err := km.PublicJWKS(mustJWKS(t, jwtx.AlgorithmRS256, "a"))
	require.NoError(t, err)
	b, err := km.PublicJWKS(mustJWKS(t, jwtx.AlgorithmES256, "b"))
	require.NoError(t, err)

	merged := jwtx.MergeJWKS(a, b, a)
	require.Len(t, merged.Keys, 2)
}

func TestKeyManagerCachesParsedSets(t *testing.T) {
	km := jwtx.NewKeyManager()
	doc := mustJWKS(t, jwtx.AlgorithmEdDSA, "k1")

	first, err := km.KeySet(doc)
	require.NoError(t, err)
	second, err := km.KeySet(doc)
	require.NoError(t, err)
	require.Same(t, first, second)
}
