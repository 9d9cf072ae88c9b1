package jwtx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default clock-skew allowances for the two verification levels.
const (
	DefaultLeeway       = 30 * time.Second
	DefaultStrictLeeway = 120 * time.Second
)

var (
	// ErrInvalidKey means no usable key could be resolved for (kid, alg).
	ErrInvalidKey = errors.New("jwtx: invalid key")
	// ErrInvalidToken covers every structural, signature or claim failure
	// other than expiry.
	ErrInvalidToken = errors.New("jwtx: invalid token")
	// ErrExpiredToken means exp passed beyond the allowed leeway.
	ErrExpiredToken = errors.New("jwtx: token expired")
	// ErrEncoding means the token could not be serialised or signed.
	ErrEncoding = errors.New("jwtx: encoding failed")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrSubject      = errors.New("jwtx: subject mismatch")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrMissingClaim = errors.New("jwtx: missing claim")
)

// Codec issues and verifies compact JWS tokens against caller-supplied JWKS
// documents. A zero Codec is not usable; use NewCodec.
type Codec struct {
	Keys   *KeyManager
	Remote *RemoteKeys // optional, needed only for VerifyRemote

	Leeway       time.Duration
	StrictLeeway time.Duration

	// Now is the clock used for time-based claim checks.
	Now func() time.Time
}

// NewCodec returns a Codec with the default leeways and the wall clock.
func NewCodec() *Codec {
	return &Codec{
		Keys:         NewKeyManager(),
		Leeway:       DefaultLeeway,
		StrictLeeway: DefaultStrictLeeway,
		Now:          time.Now,
	}
}

// StrictOptions are the expectations of VerifyStrict.
type StrictOptions struct {
	Issuer    string
	Subject   string // defaults to ClientID
	ClientID  string
	KeyID     string
	JWKS      []byte
	Algorithm string
}

// Issue signs claims with the key resolved for (keyID, alg).
func (c *Codec) Issue(claims Claims, keyID string, jwks []byte, alg string) (string, error) {
	alg = algOrDefault(alg)

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return "", fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidKey, alg)
	}

	ks, err := c.Keys.KeySet(jwks)
	if err != nil {
		return "", err
	}

	key, err := ks.SigningKey(keyID, alg)
	if err != nil {
		return "", err
	}

	t := jwt.NewWithClaims(method, jwt.MapClaims(claims))
	t.Header["kid"] = keyID

	signed, err := t.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Verify checks the signature and time claims of token, allowing Leeway of
// clock skew, and returns its claims.
func (c *Codec) Verify(token, keyID string, jwks []byte, alg string) (Claims, error) {
	alg = algOrDefault(alg)

	ks, err := c.Keys.KeySet(jwks)
	if err != nil {
		return nil, err
	}

	return c.parse(token, alg, c.Leeway, nil, func(kid string) (any, error) {
		if kid != "" && keyID != "" && kid != keyID {
			return nil, fmt.Errorf("%w: token kid %q, expected %q", ErrInvalidKey, kid, keyID)
		}
		if keyID == "" {
			keyID = kid
		}
		return ks.VerificationKey(keyID, alg)
	})
}

// VerifyStrict is Verify plus issuer, subject and audience matching, the
// presence of iat, exp and sub, and the wider StrictLeeway.
func (c *Codec) VerifyStrict(token string, opts StrictOptions) (Claims, error) {
	alg := algOrDefault(opts.Algorithm)

	ks, err := c.Keys.KeySet(opts.JWKS)
	if err != nil {
		return nil, err
	}

	return c.verifyStrict(token, alg, opts, func(kid string) (any, error) {
		if kid != "" && kid != opts.KeyID {
			return nil, fmt.Errorf("%w: token kid %q, expected %q", ErrInvalidKey, kid, opts.KeyID)
		}
		return ks.VerificationKey(opts.KeyID, alg)
	})
}

// VerifyRemote is Verify with the key fetched from a JWKS endpoint instead
// of a local document. The kid comes from the token header.
func (c *Codec) VerifyRemote(ctx context.Context, token, jwksURL, alg string) (Claims, error) {
	if c.Remote == nil {
		return nil, fmt.Errorf("%w: no remote key source configured", ErrInvalidKey)
	}
	alg = algOrDefault(alg)

	return c.parse(token, alg, c.Leeway, nil, func(kid string) (any, error) {
		return c.Remote.Key(ctx, jwksURL, kid, alg)
	})
}

// VerifyRemoteStrict applies the VerifyStrict checks to a token whose key
// is fetched from jwksURL. opts.JWKS is ignored; a non-empty opts.KeyID
// must match the token kid.
func (c *Codec) VerifyRemoteStrict(ctx context.Context, token, jwksURL string, opts StrictOptions) (Claims, error) {
	if c.Remote == nil {
		return nil, fmt.Errorf("%w: no remote key source configured", ErrInvalidKey)
	}
	alg := algOrDefault(opts.Algorithm)

	return c.verifyStrict(token, alg, opts, func(kid string) (any, error) {
		if opts.KeyID != "" && kid != opts.KeyID {
			return nil, fmt.Errorf("%w: token kid %q, expected %q", ErrInvalidKey, kid, opts.KeyID)
		}
		return c.Remote.Key(ctx, jwksURL, kid, alg)
	})
}

func (c *Codec) verifyStrict(token, alg string, opts StrictOptions, lookup func(kid string) (any, error)) (Claims, error) {
	subject := opts.Subject
	if subject == "" {
		subject = opts.ClientID
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithIssuer(opts.Issuer),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if opts.ClientID != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.ClientID))
	}

	claims, err := c.parse(token, alg, c.StrictLeeway, parserOpts, lookup)
	if err != nil {
		return nil, err
	}

	if err := claims.Require(ClaimIssuedAt, ClaimExpiresAt, ClaimSubject); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

func (c *Codec) parse(
	token, alg string,
	leeway time.Duration,
	extra []jwt.ParserOption,
	lookup func(kid string) (any, error),
) (Claims, error) {
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(c.now),
	}, extra...)

	parsed, err := jwt.NewParser(opts...).Parse(token, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return lookup(kid)
	})
	if err != nil {
		return nil, classify(err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return normalizeDates(Claims(mc)), nil
}

// normalizeDates turns the NumericDate claims decoded as float64 back into
// the int64 seconds NewClaims writes.
func normalizeDates(c Claims) Claims {
	for _, name := range []string{ClaimIssuedAt, ClaimExpiresAt, ClaimNotBefore} {
		if f, ok := c[name].(float64); ok && f == math.Trunc(f) {
			c[name] = int64(f)
		}
	}
	return c
}

// classify folds parser errors onto the three verification outcomes. Key
// errors win over expiry, and expiry wins over everything else.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrInvalidKey):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrIssuer)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrAudience)
	case errors.Is(err, jwt.ErrTokenInvalidSubject):
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrSubject)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrNotYetValid)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingClaim)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func algOrDefault(alg string) string {
	if alg == "" {
		return DefaultAlgorithm
	}
	return alg
}
