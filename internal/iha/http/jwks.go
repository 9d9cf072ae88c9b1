package http

import (
	"net/http"

	"github.com/aussiebroadwan/iha/internal/iha/authz"
	"github.com/aussiebroadwan/iha/pkg/httpx"
	"github.com/aussiebroadwan/iha/pkg/ihasdk"
)

// JWKSHandler godoc
//
//	@Summary		JSON Web Key Set
//	@Description	Returns the public keys of the global signing key set and of every client with its own key, in JWKS format (RFC 7517).
//	@Tags			OIDC
//	@Produce		json
//	@Success		200	{object}	ihasdk.JWKSResponse		"JWKS containing public keys"
//	@Failure		500	{object}	ihasdk.ErrorResponse	"No usable signing configuration"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(tokens *authz.TokenIssuer, clientIDs []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := tokens.PublicJWKS(r.Context(), clientIDs...)
		if err != nil {
			writeError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, ihasdk.JWKSResponse(keys))
	}
}
