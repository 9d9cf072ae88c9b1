package http

import (
	"net/http"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/oidc"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/httpx"
	"github.com/aussiebroadwan/iha/pkg/ihasdk"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

type UserInfoHandler struct {
	Users store.UserDetailsStore
}

// ServeHTTP handles the OpenID Connect UserInfo endpoint.
//
//	@Summary		Get user information
//	@Description	Returns the claims of the authenticated user, filtered by the scopes of the access token. Requires the 'openid' scope.
//	@Tags			OIDC
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	ihasdk.UserInfo			"sub plus the claims released by the granted scopes"
//	@Failure		401	{object}	ihasdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		403	{object}	ihasdk.ErrorResponse	"Access token lacks the openid scope"
//	@Failure		500	{object}	ihasdk.ErrorResponse	"Internal server error"
//	@Router			/oauth2/userinfo [get]
//	@Router			/oauth2/userinfo [post].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok || claims.Subject() == "" {
		ihasdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.Users.LoadByID(ctx, claims.Subject())
	if err == nil {
		err = authn.CheckAccount(user)
	}
	if err != nil {
		if domain.Public(domain.KindOf(err)) {
			log.Warn("userinfo for unusable account", "sub", claims.Subject(), "err", err)
			ihasdk.ErrInvalidToken.WriteError(w)
			return
		}
		writeError(w, r, err)
		return
	}

	scopes := httpx.ParseSpaceDelimitedFields(claims.Scope())
	info := oidc.Project(user.UserInfo(), scopes)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, ihasdk.UserInfo(info))
}
