package jwtx

import (
	"time"

	"github.com/google/uuid"
)

// Default lifetimes used when a client registration leaves them unset.
const (
	DefaultAccessTokenTTL = 15 * time.Minute
	DefaultIDTokenTTL     = 15 * time.Minute
)

// Registered claim names.
const (
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimExpiresAt = "exp"
	ClaimIssuedAt  = "iat"
	ClaimNotBefore = "nbf"
	ClaimID        = "jti"
	ClaimNonce     = "nonce"
	ClaimScope     = "scope"
	ClaimClientID  = "client_id"
	ClaimAtHash    = "at_hash"
	ClaimCHash     = "c_hash"
)

// Claims is a JWT payload. Values decoded from a token follow encoding/json
// rules, except iat, exp and nbf which come back as int64 seconds.
type Claims map[string]any

// ClaimsOptions drives NewClaims.
type ClaimsOptions struct {
	Issuer   string
	Subject  string // defaults to ClientID
	ClientID string
	TTL      time.Duration
	Nonce    string
	Extra    map[string]any
	Now      time.Time // zero means time.Now()
}

// NewClaims builds the standard claim set: iss, sub, aud, iat, exp, jti and
// an optional nonce. Extra claims never override the registered ones.
func NewClaims(opts ClaimsOptions) Claims {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	subject := opts.Subject
	if subject == "" {
		subject = opts.ClientID
	}

	c := make(Claims, len(opts.Extra)+7)
	for k, v := range opts.Extra {
		c[k] = v
	}

	c[ClaimIssuer] = opts.Issuer
	c[ClaimSubject] = subject
	c[ClaimAudience] = opts.ClientID
	c[ClaimIssuedAt] = now.Unix()
	c[ClaimExpiresAt] = now.Add(opts.TTL).Unix()
	c[ClaimID] = NewJTI()
	if opts.Nonce != "" {
		c[ClaimNonce] = opts.Nonce
	}

	return c
}

// NewJTI returns a random identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

func (c Claims) stringClaim(name string) string {
	s, _ := c[name].(string)
	return s
}

func (c Claims) Issuer() string  { return c.stringClaim(ClaimIssuer) }
func (c Claims) Subject() string { return c.stringClaim(ClaimSubject) }
func (c Claims) Nonce() string   { return c.stringClaim(ClaimNonce) }
func (c Claims) Scope() string   { return c.stringClaim(ClaimScope) }

// Audience returns aud as a list whether it was encoded as a string or an
// array.
func (c Claims) Audience() []string {
	switch v := c[ClaimAudience].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Time reads a NumericDate claim.
func (c Claims) Time(name string) (time.Time, bool) {
	switch v := c[name].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case int64:
		return time.Unix(v, 0).UTC(), true
	case int:
		return time.Unix(int64(v), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// Require reports ErrMissingClaim for the first absent name.
func (c Claims) Require(names ...string) error {
	for _, n := range names {
		if _, ok := c[n]; !ok {
			return &MissingClaimError{Name: n}
		}
	}
	return nil
}

// MissingClaimError names a claim a strict verification needed but did not find.
type MissingClaimError struct{ Name string }

func (e *MissingClaimError) Error() string { return "jwtx: missing claim " + e.Name }
func (e *MissingClaimError) Unwrap() error { return ErrMissingClaim }
