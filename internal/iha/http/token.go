package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/authz"
	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/httpx"
	"github.com/aussiebroadwan/iha/pkg/ihasdk"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// TokenHandler serves POST /oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	Manager *authn.Manager
	Builder *authz.Builder
	Clients store.ClientDetailsStore
}

// tokenClient is the client a token request was made by. Confidential is
// tracked apart from the registration because authentication erases the
// secret hash.
type tokenClient struct {
	domain.ClientDetails
	Confidential bool
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues access tokens, and ID tokens for openid user flows, using OAuth2 grant types (authorization_code, client_credentials, password).
//	@Description	Confidential clients authenticate with HTTP Basic or client_secret in the body. Public clients send client_id only and must use PKCE.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, client_credentials, password)
//	@Param			code			formData	string					false	"Authorization code (required for authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI used in the authorization request"
//	@Param			code_verifier	formData	string					false	"PKCE code_verifier (required when PKCE was used)"
//	@Param			client_id		formData	string					false	"Client identifier (when not using HTTP Basic)"
//	@Param			client_secret	formData	string					false	"Client secret (confidential clients, when not using HTTP Basic)"
//	@Param			username		formData	string					false	"Resource owner username (required for password grant)"
//	@Param			password		formData	string					false	"Resource owner password (required for password grant)"
//	@Param			scope			formData	string					false	"Space-delimited list of scopes"
//	@Success		200				{object}	ihasdk.TokenResponse	"access_token, token_type, expires_in, scope, id_token"
//	@Failure		400				{object}	ihasdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	ihasdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	ihasdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/oauth2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. Ensure the right content-type
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		ihasdk.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		ihasdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	grantType := strings.TrimSpace(r.PostForm.Get(domain.ParamGrantType))
	if grantType == "" {
		writeError(w, r, domain.New(domain.KindInvalidRequest, "grant_type is required"))
		return
	}

	// 3. Authenticate the client
	client, err := h.authenticateClient(r)
	if err != nil {
		if domain.KindOf(err) == domain.KindInvalidClient {
			w.Header().Set("WWW-Authenticate", `Basic realm="iha"`)
		}
		writeError(w, r, err)
		return
	}
	r = r.WithContext(slogx.With(r.Context(), "client_id", client.ClientID, "grant_type", grantType))

	// 4. Handle the grant type
	switch grantType {
	case domain.GrantAuthorizationCode:
		h.handleAuthorizationCodeGrant(w, r, client, r.PostForm)
	case domain.GrantClientCredentials:
		h.handleClientCredentialsGrant(w, r, client, r.PostForm)
	case domain.GrantPassword:
		h.handlePasswordGrant(w, r, client, r.PostForm)
	default:
		ihasdk.ErrUnsupportedGrantType.WriteError(w)
	}
}

// authenticateClient resolves the calling client from HTTP Basic
// credentials or the client_id and client_secret fields. A request without
// a secret is accepted only from a public client.
func (h *TokenHandler) authenticateClient(r *http.Request) (tokenClient, error) {
	ctx := r.Context()

	clientID, secret, basic := r.BasicAuth()
	if basic {
		// RFC 6749 section 2.3.1 form-encodes both values.
		var err error
		if clientID, err = url.QueryUnescape(clientID); err != nil {
			return tokenClient{}, domain.New(domain.KindInvalidClient, "malformed basic credentials")
		}
		if secret, err = url.QueryUnescape(secret); err != nil {
			return tokenClient{}, domain.New(domain.KindInvalidClient, "malformed basic credentials")
		}
	} else {
		clientID = strings.TrimSpace(r.PostForm.Get(domain.ParamClientID))
		secret = r.PostForm.Get(domain.ParamClientSecret)
	}

	if clientID == "" {
		return tokenClient{}, domain.New(domain.KindInvalidClient, "client authentication required")
	}

	if secret == "" {
		client, err := h.Clients.GetByClientID(ctx, clientID)
		if errors.Is(err, store.ErrNotFound) {
			return tokenClient{}, domain.Newf(domain.KindInvalidClient, "unknown client %q", clientID)
		}
		if err != nil {
			return tokenClient{}, domain.Wrap(domain.KindInternal, err, "load client")
		}
		if !client.IsPublic() {
			return tokenClient{}, domain.New(domain.KindInvalidClient, "client authentication required")
		}
		return tokenClient{ClientDetails: client}, nil
	}

	param := domain.NewRequestParameter(map[string]any{
		domain.ParamType:         authn.TypeClient,
		domain.ParamClientID:     clientID,
		domain.ParamClientSecret: secret,
	})
	_, auth, err := h.Manager.Authenticate(ctx, param)
	if auth == nil {
		switch domain.KindOf(err) {
		case domain.KindInvalidClient, domain.KindBadCredentials, domain.KindUnknownAccount:
			return tokenClient{}, domain.Wrap(domain.KindInvalidClient, err, "client authentication failed")
		}
		return tokenClient{}, err
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("client authenticated despite hook failure", "client_id", clientID, "err", err)
	}

	client, ok := auth.Client()
	if !ok {
		return tokenClient{}, domain.New(domain.KindInternal, "client authentication returned no client")
	}
	return tokenClient{ClientDetails: *client, Confidential: true}, nil
}

func (h *TokenHandler) handleAuthorizationCodeGrant(
	w http.ResponseWriter,
	r *http.Request,
	client tokenClient,
	form url.Values,
) {
	verifier := strings.TrimSpace(form.Get(domain.ParamCodeVerifier))
	if !client.Confidential && verifier == "" {
		writeError(w, r, domain.New(domain.KindInvalidRequest, "public clients must send code_verifier"))
		return
	}

	resp, err := h.Builder.Redeem(r.Context(), authz.RedeemRequest{
		Client:       client.ClientDetails,
		Code:         strings.TrimSpace(form.Get(domain.ParamCode)),
		RedirectURI:  strings.TrimSpace(form.Get(domain.ParamRedirectURI)),
		CodeVerifier: verifier,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTokenResponse(w, resp)
}

func (h *TokenHandler) handleClientCredentialsGrant(
	w http.ResponseWriter,
	r *http.Request,
	client tokenClient,
	form url.Values,
) {
	if !client.Confidential {
		ihasdk.ErrUnauthorizedClient.WriteError(w)
		return
	}

	requested := httpx.ParseSpaceDelimitedFields(form.Get(domain.ParamScope))
	resp, err := h.Builder.ClientCredentials(r.Context(), client.ClientDetails, requested)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTokenResponse(w, resp)
}

func (h *TokenHandler) handlePasswordGrant(
	w http.ResponseWriter,
	r *http.Request,
	client tokenClient,
	form url.Values,
) {
	ctx := r.Context()

	if !client.Confidential || !client.AllowsGrantType(domain.GrantPassword) {
		ihasdk.ErrUnauthorizedClient.WriteError(w)
		return
	}

	username := strings.TrimSpace(form.Get("username"))
	if username == "" {
		writeError(w, r, domain.New(domain.KindInvalidRequest, "username is required"))
		return
	}

	requested := httpx.ParseSpaceDelimitedFields(form.Get(domain.ParamScope))
	if len(requested) == 0 {
		requested = client.Scopes
	}
	scopes, err := authz.GrantedScopes(client.ClientDetails, requested)
	if err != nil {
		writeError(w, r, err)
		return
	}

	param := domain.NewRequestParameter(map[string]any{
		domain.ParamType:        authn.TypeUsername,
		domain.ParamClientID:    client.ClientID,
		domain.ParamPrincipal:   username,
		domain.ParamCredentials: form.Get("password"),
	})
	ctx, auth, err := h.Manager.Authenticate(ctx, param)
	if auth == nil {
		writeError(w, r, err)
		return
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("password grant continues after hook failure", "err", err)
	}

	user, ok := auth.User()
	if !ok {
		writeError(w, r, domain.New(domain.KindInternal, "password authentication returned no user"))
		return
	}

	resp, err := h.Builder.IssueTokens(ctx, client.ClientDetails, *user, scopes, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTokenResponse(w, resp)
}

func writeTokenResponse(w http.ResponseWriter, resp domain.TokenResponse) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, ihasdk.TokenResponse{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		ExpiresIn:   resp.ExpiresIn,
		Scope:       resp.Scope,
		IDToken:     resp.IDToken,
	})
}
