package authn

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeIDToken is the token type handed to UserDetailsStore.FromToken.
const TokenTypeIDToken = "id_token"

// TokenProcessor signs a user in with an ID token issued by an upstream
// OpenID provider. The raw token travels as the credentials parameter.
// Register one per upstream issuer under TypeOAuth2.
type TokenProcessor struct {
	Issuer   string
	Verifier *oidc.IDTokenVerifier
	Users    store.UserDetailsStore
}

// NewTokenProcessor discovers the upstream provider and builds a verifier
// expecting clientID in the audience.
func NewTokenProcessor(ctx context.Context, issuer, clientID string, users store.UserDetailsStore) (*TokenProcessor, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, domain.Wrap(domain.KindConfiguration, err, "discover upstream provider "+issuer)
	}
	return &TokenProcessor{
		Issuer:   issuer,
		Verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		Users:    users,
	}, nil
}

// Matches peeks at the unverified issuer so several upstreams can share
// the oauth2 type.
func (p *TokenProcessor) Matches(param domain.RequestParameter) bool {
	raw := param.Credentials()
	if raw == "" {
		return false
	}
	if p.Issuer == "" {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	iss, _ := claims.GetIssuer()
	return iss == p.Issuer
}

func (p *TokenProcessor) Authenticate(ctx context.Context, param domain.RequestParameter) (*domain.Authentication, error) {
	raw := param.Credentials()

	idToken, err := p.Verifier.Verify(ctx, raw)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, domain.Wrap(domain.KindExpiredToken, err, "upstream id token expired")
		}
		return nil, domain.Wrap(domain.KindInvalidToken, err, "upstream id token rejected")
	}

	userInfo := map[string]any{}
	if err := idToken.Claims(&userInfo); err != nil {
		return nil, domain.Wrap(domain.KindInvalidToken, err, "decode upstream claims")
	}
	userInfo["iss"] = idToken.Issuer
	userInfo["sub"] = idToken.Subject

	user, err := p.Users.FromToken(ctx, TokenTypeIDToken, raw, userInfo)
	if err != nil {
		return nil, err
	}

	if err := CheckAccount(user); err != nil {
		return nil, err
	}

	return &domain.Authentication{
		Principal:   &user,
		Credentials: raw,
		Authorities: append([]string(nil), user.Authorities...),
		Type:        TypeOAuth2,
		ClientID:    param.ClientID(),
	}, nil
}
