package domain

import (
	"time"

	"github.com/aussiebroadwan/iha/pkg/jwtx"
)

// VerificationType says where verification keys come from.
type VerificationType string

const (
	// VerifyJWKS verifies with the embedded JWKS document.
	VerifyJWKS VerificationType = "jwks"
	// VerifyHTTPS verifies with keys fetched from JWKSURL.
	VerifyHTTPS VerificationType = "https"
)

// JwtConfig holds the signing material for one client, or the global
// default when ClientID is empty.
type JwtConfig struct {
	ClientID         string
	KeyID            string
	JWKS             []byte // private JWKS document
	Algorithm        string
	VerificationType VerificationType
	JWKSURL          string
	TTL              time.Duration
}

// Alg returns the configured algorithm or the codec default.
func (c JwtConfig) Alg() string {
	if c.Algorithm == "" {
		return jwtx.DefaultAlgorithm
	}
	return c.Algorithm
}

// Validate checks the config is usable before any token is minted.
func (c JwtConfig) Validate() error {
	if c.KeyID == "" {
		return New(KindConfiguration, "jwt config has no key id")
	}
	if len(c.JWKS) == 0 {
		return New(KindConfiguration, "jwt config has no jwks")
	}
	switch c.VerificationType {
	case "", VerifyJWKS:
	case VerifyHTTPS:
		if c.JWKSURL == "" {
			return New(KindConfiguration, "https verification needs a jwks url")
		}
	default:
		return Newf(KindConfiguration, "unknown verification type %q", c.VerificationType)
	}
	return nil
}
