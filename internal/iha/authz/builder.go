// Package authz builds authorization endpoint responses and redeems the
// codes they hand out.
package authz

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/oidc"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// Builder validates an authorization request for an authenticated user and
// assembles the response parameters.
type Builder struct {
	Tokens    *TokenIssuer
	Codes     store.AuthorizationCodeStore
	Users     store.UserDetailsStore
	Approvals store.ApprovalStore
	Now       func() time.Time

	// ApprovalTTL is how long a recorded consent is honoured. Zero means
	// domain.DefaultApprovalTTL, negative never expires.
	ApprovalTTL time.Duration

	mu       sync.RWMutex
	handlers []ResponseTypeHandler
}

// NewBuilder returns a Builder serving code, token, id_token and every
// combination of them. Clients that are not auto-approved need the user's
// consent, remembered in approvals.
func NewBuilder(tokens *TokenIssuer, codes store.AuthorizationCodeStore, users store.UserDetailsStore, approvals store.ApprovalStore) *Builder {
	b := &Builder{Tokens: tokens, Codes: codes, Users: users, Approvals: approvals}

	code := &CodeHandler{Codes: codes, Now: b.now}
	token := &TokenHandler{Tokens: tokens}
	idToken := &IDTokenHandler{Tokens: tokens}
	b.Register(code, token, idToken, &CompositeHandler{Members: []ResponseTypeHandler{code, token, idToken}})

	return b
}

// Register appends handlers. The first handler matching a response type
// serves it.
func (b *Builder) Register(handlers ...ResponseTypeHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handlers...)
}

func (b *Builder) now() time.Time { return clock(b.Now) }

func (b *Builder) handler(responseType string) ResponseTypeHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		if h.Matches(responseType) {
			return h
		}
	}
	return nil
}

// Build checks every precondition of the request before anything is
// minted, then runs the handler for its response type. The result carries
// state whenever the request did.
func (b *Builder) Build(ctx context.Context, param domain.RequestParameter, client domain.ClientDetails, user domain.UserDetails) (Result, error) {
	req, err := b.prepare(param, client, user)
	if err != nil {
		slogx.FromContext(ctx).Debug("authorization request rejected",
			"client_id", client.ClientID,
			"kind", domain.KindOf(err),
		)
		return nil, err
	}

	h := b.handler(req.ResponseType)
	if h == nil {
		return nil, domain.Newf(domain.KindUnsupportedResponseType, "response_type %q is not supported", req.ResponseType)
	}

	if err := b.checkConsent(ctx, req); err != nil {
		slogx.FromContext(ctx).Debug("authorization request not approved",
			"client_id", client.ClientID,
			"user_id", user.ID,
			"kind", domain.KindOf(err),
		)
		return nil, err
	}

	result := Result{}
	if err := h.Process(ctx, req, result); err != nil {
		return nil, err
	}
	if state := param.State(); state != "" {
		result[domain.ParamState] = state
	}

	slogx.FromContext(ctx).Info("authorization granted",
		"client_id", client.ClientID,
		"user_id", user.ID,
		"response_type", req.ResponseType,
	)
	return result, nil
}

func (b *Builder) prepare(param domain.RequestParameter, client domain.ClientDetails, user domain.UserDetails) (Request, error) {
	rt := domain.NormalizeResponseType(param.ResponseType())
	if rt == "" {
		return Request{}, domain.New(domain.KindInvalidRequest, "response_type is required")
	}
	if !client.AllowsResponseType(rt) {
		return Request{}, domain.Newf(domain.KindUnsupportedResponseType, "response_type %q is not allowed for this client", rt).
			WithDetail("response_type", rt)
	}

	redirect, err := ResolveRedirectURI(param.RedirectURI(), client)
	if err != nil {
		return Request{}, err
	}

	scopes, err := GrantedScopes(client, param.Scope())
	if err != nil {
		return Request{}, err
	}
	if strings.Contains(rt, ResponseIDToken) && !slices.Contains(scopes, oidc.ScopeOpenID) {
		return Request{}, domain.New(domain.KindInvalidRequest, "id_token requires the openid scope")
	}

	challenge, method, err := validatePKCE(param.CodeChallenge(), param.CodeChallengeMethod(), client)
	if err != nil {
		return Request{}, err
	}

	return Request{
		ResponseType:        rt,
		Param:               param,
		Client:              client,
		User:                user,
		Scopes:              scopes,
		RedirectURI:         redirect,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	}, nil
}

// ResolveRedirectURI returns the supplied redirect URI if registered. An
// omitted one defaults to the only registered URI.
func ResolveRedirectURI(uri string, client domain.ClientDetails) (string, error) {
	if uri == "" {
		if len(client.RedirectURIs) == 1 {
			return client.RedirectURIs[0], nil
		}
		return "", domain.New(domain.KindInvalidRequest, "redirect_uri is required")
	}
	if !client.HasRedirectURI(uri) {
		return "", domain.New(domain.KindInvalidRequest, "redirect_uri is not registered").
			WithDetail("redirect_uri", uri)
	}
	return uri, nil
}

// GrantedScopes dedupes requested and checks it is a subset of the client
// registration.
func GrantedScopes(client domain.ClientDetails, requested []string) ([]string, error) {
	scopes := dedupe(requested)
	if extra := client.ExcessScopes(scopes); len(extra) > 0 {
		return nil, domain.New(domain.KindInvalidScope, "requested scope exceeds the client registration").
			WithDetail("scope", strings.Join(extra, " "))
	}
	return scopes, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
