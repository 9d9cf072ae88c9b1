package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
)

// KeySet is a parsed JWKS document. It may hold private keys (the signing
// side) or only public ones (a relying party). Safe for concurrent reads;
// never mutated after ParseKeySet.
type KeySet struct {
	jwks jose.JSONWebKeySet
}

// ParseKeySet parses a JWKS JSON document. Every key must be valid and carry
// a kid, otherwise key resolution could not be unambiguous.
func ParseKeySet(raw []byte) (*KeySet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty jwks", ErrInvalidKey)
	}

	var jwks jose.JSONWebKeySet
	if err := json.Unmarshal(raw, &jwks); err != nil {
		return nil, fmt.Errorf("%w: parse jwks: %v", ErrInvalidKey, err)
	}

	for i, k := range jwks.Keys {
		if k.KeyID == "" {
			return nil, fmt.Errorf("%w: key %d has no kid", ErrInvalidKey, i)
		}
		if _, symmetric := k.Key.([]byte); symmetric {
			continue
		}
		if !k.Valid() {
			return nil, fmt.Errorf("%w: key %q is not valid", ErrInvalidKey, k.KeyID)
		}
	}

	return &KeySet{jwks: jwks}, nil
}

// SigningKey resolves the one private key for (kid, alg).
func (k *KeySet) SigningKey(kid, alg string) (any, error) {
	jwk, err := k.resolve(kid, alg)
	if err != nil {
		return nil, err
	}

	if _, symmetric := jwk.Key.([]byte); !symmetric && jwk.IsPublic() {
		return nil, fmt.Errorf("%w: key %q has no private material", ErrInvalidKey, kid)
	}
	return jwk.Key, nil
}

// VerificationKey resolves the one key for (kid, alg) and returns its
// public half.
func (k *KeySet) VerificationKey(kid, alg string) (any, error) {
	jwk, err := k.resolve(kid, alg)
	if err != nil {
		return nil, err
	}

	if secret, symmetric := jwk.Key.([]byte); symmetric {
		return secret, nil
	}
	if jwk.IsPublic() {
		return jwk.Key, nil
	}

	pub := jwk.Public()
	if pub.Key == nil {
		return nil, fmt.Errorf("%w: key %q has no public half", ErrInvalidKey, kid)
	}
	return pub.Key, nil
}

// Public returns the publishable half of the set: private material stripped
// and symmetric keys dropped.
func (k *KeySet) Public() jose.JSONWebKeySet {
	out := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(k.jwks.Keys))}
	for _, jwk := range k.jwks.Keys {
		if _, symmetric := jwk.Key.([]byte); symmetric {
			continue
		}
		pub := jwk.Public()
		if pub.Key == nil {
			continue
		}
		out.Keys = append(out.Keys, pub)
	}
	return out
}

// resolve implements the one-key-per-(kid, alg) rule: zero or several
// candidates both fail closed.
func (k *KeySet) resolve(kid, alg string) (jose.JSONWebKey, error) {
	if kid == "" {
		return jose.JSONWebKey{}, fmt.Errorf("%w: no key id", ErrInvalidKey)
	}

	var (
		found jose.JSONWebKey
		n     int
	)
	for _, jwk := range k.jwks.Key(kid) {
		if jwk.Algorithm != "" && jwk.Algorithm != alg {
			continue
		}
		if !KeyFitsAlgorithm(jwk.Key, alg) {
			continue
		}
		found = jwk
		n++
	}

	switch n {
	case 0:
		return jose.JSONWebKey{}, fmt.Errorf("%w: no %s key with kid %q", ErrInvalidKey, alg, kid)
	case 1:
		return found, nil
	default:
		return jose.JSONWebKey{}, fmt.Errorf("%w: %d %s keys share kid %q", ErrInvalidKey, n, alg, kid)
	}
}

// KeyFitsAlgorithm reports whether a raw key can be used with alg.
func KeyFitsAlgorithm(key any, alg string) bool {
	switch k := key.(type) {
	case *rsa.PrivateKey, *rsa.PublicKey:
		return strings.HasPrefix(alg, "RS") || strings.HasPrefix(alg, "PS")
	case *ecdsa.PrivateKey:
		return ecdsaFits(k.Curve.Params().BitSize, alg)
	case *ecdsa.PublicKey:
		return ecdsaFits(k.Curve.Params().BitSize, alg)
	case ed25519.PrivateKey, ed25519.PublicKey:
		return alg == AlgorithmEdDSA
	case []byte:
		return strings.HasPrefix(alg, "HS")
	default:
		return false
	}
}

func ecdsaFits(bits int, alg string) bool {
	switch alg {
	case "ES256":
		return bits == 256
	case "ES384":
		return bits == 384
	case "ES512":
		return bits == 521
	default:
		return false
	}
}
