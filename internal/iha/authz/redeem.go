package authz

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/oidc"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// RedeemRequest is an authorization_code grant from an authenticated
// client.
type RedeemRequest struct {
	Client       domain.ClientDetails
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// Redeem exchanges an authorization code for tokens. The code is consumed
// before any other check so a rejected attempt still burns it.
func (b *Builder) Redeem(ctx context.Context, req RedeemRequest) (domain.TokenResponse, error) {
	log := slogx.FromContext(ctx)

	if req.Code == "" {
		return domain.TokenResponse{}, domain.New(domain.KindInvalidRequest, "code is required")
	}
	if !req.Client.AllowsGrantType(domain.GrantAuthorizationCode) {
		return domain.TokenResponse{}, domain.New(domain.KindInvalidGrant, "client may not use the authorization_code grant")
	}

	code, err := b.Codes.Consume(ctx, cryptox.FingerprintToken(req.Code))
	if errors.Is(err, store.ErrNotFound) {
		return domain.TokenResponse{}, domain.New(domain.KindInvalidGrant, "authorization code is invalid, expired or already used")
	}
	if err != nil {
		return domain.TokenResponse{}, domain.Wrap(domain.KindInternal, err, "consume code")
	}

	if code.ClientID != req.Client.ClientID {
		log.Warn("authorization code presented by another client",
			"code_id", code.ID,
			"client_id", req.Client.ClientID,
		)
		return domain.TokenResponse{}, domain.New(domain.KindInvalidGrant, "authorization code was issued to another client")
	}
	switch {
	case code.RedirectURI != "" && req.RedirectURI != code.RedirectURI:
		return domain.TokenResponse{}, domain.New(domain.KindInvalidGrant, "redirect_uri does not match the authorization request")
	case code.RedirectURI == "" && req.RedirectURI != "" && !req.Client.HasRedirectURI(req.RedirectURI):
		return domain.TokenResponse{}, domain.New(domain.KindInvalidGrant, "redirect_uri is not registered")
	}

	if code.CodeChallenge != "" && strings.TrimSpace(req.CodeVerifier) == "" {
		return domain.TokenResponse{}, domain.New(domain.KindInvalidCodeChallenge, "code_verifier is required")
	}
	if !verifyCodeVerifier(code.CodeChallenge, code.CodeChallengeMethod, req.CodeVerifier) {
		return domain.TokenResponse{}, domain.New(domain.KindInvalidGrant, "code_verifier does not match the code_challenge")
	}

	user, err := b.Users.LoadByID(ctx, code.UserID)
	if err != nil {
		return domain.TokenResponse{}, err
	}
	if err := authn.CheckAccount(user); err != nil {
		return domain.TokenResponse{}, err
	}

	resp, err := b.IssueTokens(ctx, req.Client, user, code.Scopes, code.Nonce)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	log.Info("authorization code redeemed",
		"code_id", code.ID,
		"client_id", req.Client.ClientID,
		"user_id", user.ID,
	)
	return resp, nil
}

// IssueTokens mints the token endpoint response for user. An ID token is
// included when scopes carry openid.
func (b *Builder) IssueTokens(ctx context.Context, client domain.ClientDetails, user domain.UserDetails, scopes []string, nonce string) (domain.TokenResponse, error) {
	at, err := b.Tokens.AccessToken(ctx, client, user.ID, scopes)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	resp := domain.TokenResponse{
		AccessToken: at.Token,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   at.ExpiresIn(at.IssuedAt),
		Scope:       at.Scope,
	}

	if slices.Contains(scopes, oidc.ScopeOpenID) {
		resp.IDToken, err = b.Tokens.IDToken(ctx, IDTokenRequest{
			Client:      client,
			User:        user,
			Scopes:      scopes,
			Nonce:       nonce,
			AccessToken: at.Token,
		})
		if err != nil {
			return domain.TokenResponse{}, err
		}
	}

	return resp, nil
}

// ClientCredentials serves the client_credentials grant. The token subject
// is the client itself. No scope requested means every registered scope.
func (b *Builder) ClientCredentials(ctx context.Context, client domain.ClientDetails, scopes []string) (domain.TokenResponse, error) {
	if !client.AllowsGrantType(domain.GrantClientCredentials) {
		return domain.TokenResponse{}, domain.New(domain.KindInvalidGrant, "client may not use the client_credentials grant")
	}

	if len(scopes) == 0 {
		scopes = client.Scopes
	}
	scopes, err := GrantedScopes(client, scopes)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	at, err := b.Tokens.AccessToken(ctx, client, "", scopes)
	if err != nil {
		return domain.TokenResponse{}, err
	}

	return domain.TokenResponse{
		AccessToken: at.Token,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   at.ExpiresIn(at.IssuedAt),
		Scope:       at.Scope,
	}, nil
}
