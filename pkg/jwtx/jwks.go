package jwtx

import (
	"encoding/json"

	"github.com/go-jose/go-jose/v4"
)

// JWKS is a JSON Web Key Set (RFC 7517) as published at the jwks endpoint.
type JWKS = jose.JSONWebKeySet

// PublicJWKS parses raw (which may hold private keys) and returns only the
// publishable public keys.
func (km *KeyManager) PublicJWKS(raw []byte) (JWKS, error) {
	ks, err := km.KeySet(raw)
	if err != nil {
		return JWKS{}, err
	}
	return ks.Public(), nil
}

// MergeJWKS concatenates the keys of several public sets. Duplicate kids
// are kept only once, first one wins.
func MergeJWKS(sets ...JWKS) JWKS {
	out := JWKS{Keys: []jose.JSONWebKey{}}
	seen := make(map[string]struct{})
	for _, s := range sets {
		for _, k := range s.Keys {
			if _, dup := seen[k.KeyID]; dup {
				continue
			}
			seen[k.KeyID] = struct{}{}
			out.Keys = append(out.Keys, k)
		}
	}
	return out
}

// MarshalPublic renders a public set as JSON.
func MarshalPublic(set JWKS) ([]byte, error) {
	return json.Marshal(set)
}
