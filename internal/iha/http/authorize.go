package http

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/authz"
	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/httpx"
	"github.com/aussiebroadwan/iha/pkg/ihasdk"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// AuthorizeHandler serves GET and POST /oauth2/authorize. The resource
// owner authenticates with the request itself; the processor is chosen by
// the type parameter and defaults to username.
type AuthorizeHandler struct {
	Manager *authn.Manager
	Builder *authz.Builder
	Clients store.ClientDetailsStore
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Authorization Endpoint
//	@Description	Authenticates the resource owner and redirects back to the client with a code, tokens, or both.
//	@Description	Token-bearing responses (token, id_token) are returned in the fragment, code-only responses in the query.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Param			response_type			query		string					true	"Space separated combination of code, token and id_token"
//	@Param			client_id				query		string					true	"Client identifier"
//	@Param			redirect_uri			query		string					false	"Registered redirect URI (optional when only one is registered)"
//	@Param			scope					query		string					false	"Space-delimited list of scopes"
//	@Param			state					query		string					false	"Opaque value echoed back on the redirect"
//	@Param			nonce					query		string					false	"OpenID Connect nonce copied into the ID token"
//	@Param			code_challenge			query		string					false	"PKCE code challenge"
//	@Param			code_challenge_method	query		string					false	"PKCE method"	Enums(plain, S256)
//	@Param			type					formData	string					false	"Authentication processor"	Enums(username, oauth2)
//	@Param			username				formData	string					false	"Username (username processor)"
//	@Param			password				formData	string					false	"Password (username processor)"
//	@Param			user_oauth_approval		formData	boolean					false	"End-user consent for clients that are not auto-approved"
//	@Success		302						{string}	string					"Redirect to redirect_uri with the response parameters"
//	@Failure		400						{object}	ihasdk.ErrorResponse	"Unknown client or redirect_uri, not redirected"
//	@Failure		401						{object}	ihasdk.ErrorResponse	"Unknown client, not redirected"
//	@Router			/oauth2/authorize [get]
//	@Router			/oauth2/authorize [post].
func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		ihasdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	// Credentials in the query end up in access logs and browser history.
	query := r.URL.Query()
	for _, name := range domain.CredentialParams {
		if query.Has(name) {
			writeError(w, r, domain.Newf(domain.KindInvalidRequest, "%s must be sent in the request body", name))
			return
		}
	}
	param := authorizeParameter(r.Form, r.PostForm)

	// Until the client and redirect URI are known to be good, errors are
	// answered directly and never redirected.
	clientID := param.ClientID()
	if clientID == "" {
		writeError(w, r, domain.New(domain.KindInvalidRequest, "client_id is required"))
		return
	}
	client, err := h.Clients.GetByClientID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, domain.Newf(domain.KindInvalidClient, "unknown client %q", clientID))
		return
	}
	if err != nil {
		writeError(w, r, domain.Wrap(domain.KindInternal, err, "load client"))
		return
	}

	redirectURI, err := authz.ResolveRedirectURI(param.RedirectURI(), client)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fragment := usesFragment(param.ResponseType())
	deny := func(oerr *ihasdk.OAuth2Error) {
		redirectError(w, r, redirectURI, param.State(), fragment, oerr)
	}

	if param.Type() == authn.TypeUsername && !param.Has(domain.ParamPrincipal) {
		deny(ihasdk.NewOAuth2Error(http.StatusUnauthorized, ihasdk.ErrorCodeLoginRequired,
			"user authentication required"))
		return
	}

	ctx, auth, err := h.Manager.Authenticate(ctx, param)
	if auth == nil {
		deny(authorizeError(r, err))
		return
	}
	if err != nil {
		log.Warn("authorization continues after hook failure", "err", err)
	}

	user, ok := auth.User()
	if !ok {
		deny(ihasdk.NewOAuth2Error(http.StatusForbidden, ihasdk.ErrorCodeAccessDenied,
			"the authorization endpoint requires a resource owner"))
		return
	}

	result, err := h.Builder.Build(ctx, param, client, *user)
	if err != nil {
		deny(toOAuth2Error(r, err))
		return
	}

	location, err := httpx.RedirectURL(redirectURI, result.Values(), fragment)
	if err != nil {
		writeError(w, r, domain.Wrap(domain.KindInternal, err, "build redirect"))
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, location, http.StatusFound)
}

// authorizeParameter builds the parameter bag, accepting the RFC 6749
// username and password field names for the username processor.
// Credentials are only taken from the body.
func authorizeParameter(form, body url.Values) domain.RequestParameter {
	param := domain.ParameterFromValues(form)
	if param.Type() == "" {
		param = param.With(domain.ParamType, authn.TypeUsername)
	}
	if !param.Has(domain.ParamPrincipal) && form.Get("username") != "" {
		param = param.
			With(domain.ParamPrincipal, form.Get("username")).
			With(domain.ParamCredentials, body.Get("password"))
	}
	return param
}

// authorizeError reports failed resource owner authentication as
// access_denied.
func authorizeError(r *http.Request, err error) *ihasdk.OAuth2Error {
	switch kind := domain.KindOf(err); kind {
	case domain.KindUnknownAccount, domain.KindBadCredentials, domain.KindDisabled, domain.KindLocked:
		return ihasdk.NewOAuth2Error(http.StatusForbidden, ihasdk.ErrorCodeAccessDenied, describe(kind, err))
	}
	return toOAuth2Error(r, err)
}

// usesFragment reports whether the response carries tokens and so must
// be returned in the fragment.
func usesFragment(responseType string) bool {
	fields := strings.Fields(responseType)
	return slices.Contains(fields, authz.ResponseToken) || slices.Contains(fields, authz.ResponseIDToken)
}

func redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state string, fragment bool, oerr *ihasdk.OAuth2Error) {
	params := url.Values{"error": {oerr.Code}}
	if oerr.Description != "" {
		params.Set("error_description", oerr.Description)
	}
	if state != "" {
		params.Set(domain.ParamState, state)
	}

	location, err := httpx.RedirectURL(redirectURI, params, fragment)
	if err != nil {
		oerr.WriteError(w)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, location, http.StatusFound)
}
