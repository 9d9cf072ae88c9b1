package authz

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/aussiebroadwan/iha/pkg/idx"
)

// Response types.
const (
	ResponseCode    = "code"
	ResponseToken   = "token"
	ResponseIDToken = "id_token"
)

// Result is the set of parameters returned to the client's redirect URI.
type Result map[string]string

// Values renders r for a query string or fragment.
func (r Result) Values() url.Values {
	v := make(url.Values, len(r))
	for k, s := range r {
		v.Set(k, s)
	}
	return v
}

// Request is everything a response type handler sees. Scopes, redirect URI
// and PKCE fields are already validated.
type Request struct {
	ResponseType        string // normalized
	Param               domain.RequestParameter
	Client              domain.ClientDetails
	User                domain.UserDetails
	Scopes              []string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ResponseTypeHandler produces the parameters of one response type. A
// handler may read what earlier handlers wrote to result.
type ResponseTypeHandler interface {
	Matches(responseType string) bool
	Process(ctx context.Context, req Request, result Result) error
}

// CodeHandler mints authorization codes.
type CodeHandler struct {
	Codes store.AuthorizationCodeStore
	Now   func() time.Time
}

func (h *CodeHandler) Matches(responseType string) bool { return responseType == ResponseCode }

func (h *CodeHandler) Process(ctx context.Context, req Request, result Result) error {
	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Wrap(domain.KindInternal, err, "generate code")
	}

	now := clock(h.Now)
	err = h.Codes.Save(ctx, domain.AuthorizationCode{
		ID:                  idx.New().String(),
		CodeHash:            cryptox.FingerprintToken(code),
		ClientID:            req.Client.ClientID,
		UserID:              req.User.ID,
		Scopes:              req.Scopes,
		RedirectURI:         req.Param.RedirectURI(),
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Param.Nonce(),
		ExpiresAt:           now.Add(req.Client.CodeLifetime()),
		CreatedAt:           now,
	})
	if err != nil {
		return domain.Wrap(domain.KindInternal, err, "save code")
	}

	result[ResponseCode] = code
	return nil
}

// TokenHandler returns an access token straight from the authorization
// endpoint.
type TokenHandler struct {
	Tokens *TokenIssuer
}

func (h *TokenHandler) Matches(responseType string) bool { return responseType == ResponseToken }

func (h *TokenHandler) Process(ctx context.Context, req Request, result Result) error {
	at, err := h.Tokens.AccessToken(ctx, req.Client, req.User.ID, req.Scopes)
	if err != nil {
		return err
	}

	result["access_token"] = at.Token
	result["token_type"] = domain.TokenTypeBearer
	result["expires_in"] = strconv.FormatInt(at.ExpiresIn(at.IssuedAt), 10)
	if at.Scope != "" {
		result["scope"] = at.Scope
	}
	return nil
}

// IDTokenHandler returns an ID token, hashing any code or access token
// already in the result into c_hash and at_hash.
type IDTokenHandler struct {
	Tokens *TokenIssuer
}

func (h *IDTokenHandler) Matches(responseType string) bool { return responseType == ResponseIDToken }

func (h *IDTokenHandler) Process(ctx context.Context, req Request, result Result) error {
	token, err := h.Tokens.IDToken(ctx, IDTokenRequest{
		Client:      req.Client,
		User:        req.User,
		Scopes:      req.Scopes,
		Nonce:       req.Param.Nonce(),
		AccessToken: result["access_token"],
		Code:        result[ResponseCode],
	})
	if err != nil {
		return err
	}

	result[ResponseIDToken] = token
	return nil
}

// CompositeHandler serves a multi-valued response type by running its
// members in a fixed order: code, token, id_token.
type CompositeHandler struct {
	Members []ResponseTypeHandler
}

var memberOrder = []string{ResponseCode, ResponseToken, ResponseIDToken}

func (h *CompositeHandler) Matches(responseType string) bool {
	parts := strings.Fields(responseType)
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if h.member(p) == nil {
			return false
		}
	}
	return true
}

func (h *CompositeHandler) Process(ctx context.Context, req Request, result Result) error {
	parts := strings.Fields(req.ResponseType)
	for _, name := range memberOrder {
		if !slices.Contains(parts, name) {
			continue
		}
		m := h.member(name)
		if m == nil {
			return domain.Newf(domain.KindUnsupportedResponseType, "no handler for %q", name)
		}
		if err := m.Process(ctx, req, result); err != nil {
			return err
		}
	}
	return nil
}

func (h *CompositeHandler) member(responseType string) ResponseTypeHandler {
	for _, m := range h.Members {
		if m.Matches(responseType) {
			return m
		}
	}
	return nil
}

func clock(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}
