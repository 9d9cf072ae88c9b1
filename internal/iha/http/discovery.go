package http

import (
	"net/http"

	"github.com/aussiebroadwan/iha/internal/iha/authz"
	"github.com/aussiebroadwan/iha/internal/iha/oidc"
	"github.com/aussiebroadwan/iha/pkg/httpx"
)

// DiscoveryHandler godoc
//
//	@Summary		OpenID Provider Configuration
//	@Description	Returns the OpenID Connect discovery document describing the endpoints, scopes and signing algorithm of this provider.
//	@Tags			OIDC
//	@Produce		json
//	@Success		200	{object}	ihasdk.Discovery		"Provider metadata"
//	@Failure		500	{object}	ihasdk.ErrorResponse	"No usable signing configuration"
//	@Router			/.well-known/openid-configuration [get].
func DiscoveryHandler(issuer string, tokens *authz.TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alg, err := tokens.Algorithm(r.Context(), "")
		if err != nil {
			writeError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, oidc.NewDiscovery(issuer, []string{alg}))
	}
}
