package authz

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"strings"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/oidc"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints and checks the JWTs handed out by the engine, with
// signing material looked up per client.
type TokenIssuer struct {
	Issuer string
	Codec  *jwtx.Codec
	Keys   store.JwtConfigProvider
	Now    func() time.Time
}

func (t *TokenIssuer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *TokenIssuer) config(ctx context.Context, clientID string) (domain.JwtConfig, error) {
	cfg, err := t.Keys.GetJwtConfig(ctx, clientID)
	if err != nil {
		return domain.JwtConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return domain.JwtConfig{}, err
	}
	return cfg, nil
}

// AccessToken mints a bearer token for subject. subject is the user id, or
// empty for client credentials, in which case it becomes the client id.
func (t *TokenIssuer) AccessToken(ctx context.Context, client domain.ClientDetails, subject string, scopes []string) (domain.AccessToken, error) {
	cfg, err := t.config(ctx, client.ClientID)
	if err != nil {
		return domain.AccessToken{}, err
	}

	ttl := client.AccessTokenLifetime()
	if client.AccessTokenTTL <= 0 && cfg.TTL > 0 {
		ttl = cfg.TTL
	}

	now := t.now()
	scope := strings.Join(scopes, " ")
	extra := map[string]any{jwtx.ClaimClientID: client.ClientID}
	if scope != "" {
		extra[jwtx.ClaimScope] = scope
	}

	claims := jwtx.NewClaims(jwtx.ClaimsOptions{
		Issuer:   t.Issuer,
		Subject:  subject,
		ClientID: client.ClientID,
		TTL:      ttl,
		Extra:    extra,
		Now:      now,
	})

	token, err := t.Codec.Issue(claims, cfg.KeyID, cfg.JWKS, cfg.Alg())
	if err != nil {
		return domain.AccessToken{}, domain.FromJWT(err)
	}

	return domain.AccessToken{
		Token:     token,
		UserID:    subject,
		ClientID:  client.ClientID,
		Scope:     scope,
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(ttl).Truncate(time.Second),
	}, nil
}

// IDTokenRequest carries the inputs of one ID token.
type IDTokenRequest struct {
	Client      domain.ClientDetails
	User        domain.UserDetails
	Scopes      []string
	Nonce       string
	AccessToken string // sets at_hash when present
	Code        string // sets c_hash when present
}

// IDToken mints an OpenID Connect ID token. Profile claims are released
// according to the granted scopes.
func (t *TokenIssuer) IDToken(ctx context.Context, req IDTokenRequest) (string, error) {
	cfg, err := t.config(ctx, req.Client.ClientID)
	if err != nil {
		return "", err
	}
	alg := cfg.Alg()

	extra := oidc.Project(req.User.UserInfo(), req.Scopes)
	if req.AccessToken != "" {
		extra[jwtx.ClaimAtHash] = halfHash(alg, req.AccessToken)
	}
	if req.Code != "" {
		extra[jwtx.ClaimCHash] = halfHash(alg, req.Code)
	}

	claims := jwtx.NewClaims(jwtx.ClaimsOptions{
		Issuer:   t.Issuer,
		Subject:  req.User.ID,
		ClientID: req.Client.ClientID,
		TTL:      req.Client.IDTokenLifetime(),
		Nonce:    req.Nonce,
		Extra:    extra,
		Now:      t.now(),
	})

	token, err := t.Codec.Issue(claims, cfg.KeyID, cfg.JWKS, alg)
	if err != nil {
		return "", domain.FromJWT(err)
	}
	return token, nil
}

// VerifyAccessToken checks a token minted by AccessToken. The client and
// subject are read from the unverified payload only to pick the key and the
// expectations; the strict verification then checks both.
func (t *TokenIssuer) VerifyAccessToken(ctx context.Context, token string) (jwtx.Claims, error) {
	unverified := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, unverified); err != nil {
		return nil, domain.Wrap(domain.KindInvalidToken, err, "malformed token")
	}
	clientID, _ := unverified[jwtx.ClaimClientID].(string)
	subject, _ := unverified[jwtx.ClaimSubject].(string)
	if clientID == "" {
		return nil, domain.New(domain.KindInvalidToken, "token names no client")
	}

	cfg, err := t.config(ctx, clientID)
	if err != nil {
		return nil, err
	}

	opts := jwtx.StrictOptions{
		Issuer:    t.Issuer,
		Subject:   subject,
		ClientID:  clientID,
		KeyID:     cfg.KeyID,
		JWKS:      cfg.JWKS,
		Algorithm: cfg.Alg(),
	}

	var claims jwtx.Claims
	if cfg.VerificationType == domain.VerifyHTTPS {
		claims, err = t.Codec.VerifyRemoteStrict(ctx, token, cfg.JWKSURL, opts)
	} else {
		claims, err = t.Codec.VerifyStrict(token, opts)
	}
	if err != nil {
		return nil, domain.FromJWT(err)
	}
	return claims, nil
}

// PublicJWKS returns the public keys of the global config merged with
// those of the listed clients. A client falling back to the global config
// adds nothing.
func (t *TokenIssuer) PublicJWKS(ctx context.Context, clientIDs ...string) (jwtx.JWKS, error) {
	sets := make([]jwtx.JWKS, 0, len(clientIDs)+1)
	for _, id := range append([]string{""}, clientIDs...) {
		cfg, err := t.config(ctx, id)
		if err != nil {
			return jwtx.JWKS{}, err
		}
		set, err := t.Codec.Keys.PublicJWKS(cfg.JWKS)
		if err != nil {
			return jwtx.JWKS{}, domain.FromJWT(err)
		}
		sets = append(sets, set)
	}
	return jwtx.MergeJWKS(sets...), nil
}

// Algorithm returns the signing algorithm configured for clientID.
func (t *TokenIssuer) Algorithm(ctx context.Context, clientID string) (string, error) {
	cfg, err := t.config(ctx, clientID)
	if err != nil {
		return "", err
	}
	return cfg.Alg(), nil
}

// VerifyBearer adapts VerifyAccessToken to the bearer middleware.
func (t *TokenIssuer) VerifyBearer(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := t.VerifyAccessToken(ctx, token)
	if domain.KindOf(err) == domain.KindExpiredToken {
		return nil, jwtx.ErrExpiredToken
	}
	return claims, err
}

// halfHash is the at_hash / c_hash construction: the left half of the
// digest matching alg, base64url encoded.
func halfHash(alg, value string) string {
	var h hash.Hash
	switch {
	case strings.HasSuffix(alg, "384"):
		h = sha512.New384()
	case strings.HasSuffix(alg, "512"), alg == jwtx.AlgorithmEdDSA:
		h = sha512.New()
	default:
		h = sha256.New()
	}
	h.Write([]byte(value))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
