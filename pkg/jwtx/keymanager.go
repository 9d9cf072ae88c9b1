package jwtx

import (
	"crypto/elliptic"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/go-jose/go-jose/v4"
)

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmRS384 = "RS384"
	AlgorithmRS512 = "RS512"
	AlgorithmPS256 = "PS256"
	AlgorithmES256 = "ES256"
	AlgorithmES384 = "ES384"
	AlgorithmEdDSA = "EdDSA"
	AlgorithmHS256 = "HS256"

	DefaultAlgorithm = AlgorithmRS256
)

// maxCachedKeySets bounds the parsed-set cache. Per-client configurations
// rarely exceed a handful of distinct documents.
const maxCachedKeySets = 256

// KeyManager turns raw JWKS documents into parsed KeySets, caching them by
// content fingerprint so hot paths do not re-parse the same document on
// every request. Safe for concurrent use.
type KeyManager struct {
	mu   sync.RWMutex
	sets map[string]*KeySet
}

// NewKeyManager returns an empty KeyManager.
func NewKeyManager() *KeyManager {
	return &KeyManager{sets: make(map[string]*KeySet)}
}

// KeySet returns the parsed form of raw.
func (km *KeyManager) KeySet(raw []byte) (*KeySet, error) {
	fp := cryptox.FingerprintToken(string(raw))

	km.mu.RLock()
	ks, ok := km.sets[fp]
	km.mu.RUnlock()
	if ok {
		return ks, nil
	}

	ks, err := ParseKeySet(raw)
	if err != nil {
		return nil, err
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.sets) >= maxCachedKeySets {
		clear(km.sets)
	}
	km.sets[fp] = ks
	return ks, nil
}

// GenerateJWKS creates a single-key private JWKS document for alg with the
// given kid. rsaBits is only used for RSA algorithms (0 means 2048).
func GenerateJWKS(alg, kid string, rsaBits int) ([]byte, error) {
	if kid == "" {
		return nil, errors.New("jwtx: kid is required")
	}

	key, err := generateKey(alg, rsaBits)
	if err != nil {
		return nil, err
	}

	jwks := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       key,
		KeyID:     kid,
		Algorithm: alg,
		Use:       "sig",
	}}}

	return json.Marshal(jwks)
}

// NewKeyID returns a random key identifier.
func NewKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: generate key id: %w", err)
	}
	return "iha-" + token, nil
}

func generateKey(alg string, rsaBits int) (any, error) {
	var (
		pemBytes []byte
		err      error
	)

	switch alg {
	case AlgorithmRS256, AlgorithmRS384, AlgorithmRS512, AlgorithmPS256:
		if rsaBits == 0 {
			rsaBits = cryptox.MinRSABits
		}
		pemBytes, err = cryptox.GenerateRSAKey(rsaBits)
	case AlgorithmES256:
		pemBytes, err = cryptox.GenerateECDSAKey(elliptic.P256())
	case AlgorithmES384:
		pemBytes, err = cryptox.GenerateECDSAKey(elliptic.P384())
	case AlgorithmEdDSA:
		pemBytes, err = cryptox.GenerateEd25519Key()
	case AlgorithmHS256:
		return cryptox.GenerateSecret(cryptox.TokenSize256)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
	if err != nil {
		return nil, err
	}
	return parsePrivateKeyPEM(pemBytes)
}

// parsePrivateKeyPEM loads a private key from PEM bytes. Handles both PKCS1
// and PKCS8 because otherwise we will be chasing a bug for longer than we
// would be willing to admit.
func parsePrivateKeyPEM(pemKey []byte) (any, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		return x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}
}
