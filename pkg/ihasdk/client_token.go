package ihasdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// ClientCredentialsGrant requests a token for the client itself. No scopes
// means every scope registered for the client.
func (c *Client) ClientCredentialsGrant(
	ctx context.Context,
	clientID, clientSecret string,
	scopes []string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	return c.requestToken(ctx, data)
}

// PasswordGrant exchanges a username and password for tokens on behalf of
// a confidential client.
func (c *Client) PasswordGrant(
	ctx context.Context,
	clientID, clientSecret, username, password string,
	scopes []string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"password"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"username":      {username},
		"password":      {password},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	return c.requestToken(ctx, data)
}

// ExchangeCode redeems an authorization code through cfg. verifier may be
// empty when no PKCE challenge was sent.
func (c *Client) ExchangeCode(ctx context.Context, cfg *oauth2.Config, code, verifier string) (*TokenResponse, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := cfg.Exchange(c.oauth2Context(ctx), code, opts...)
	if err != nil {
		return nil, fromRetrieveError(err)
	}

	resp := &TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   tok.ExpiresIn,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}
	return resp, nil
}

func (c *Client) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, PathToken, strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}

	return &tokenResp, nil
}
