package oidc

import (
	"strings"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
)

// Endpoint paths served by the HTTP layer, relative to the issuer.
const (
	PathAuthorize = "/oauth2/authorize"
	PathToken     = "/oauth2/token"
	PathUserInfo  = "/oauth2/userinfo"
	PathJWKS      = "/.well-known/jwks.json"
	PathDiscovery = "/.well-known/openid-configuration"
)

// Discovery is the OpenID Provider metadata document.
type Discovery struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JwksURI                           string   `json:"jwks_uri"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	ResponseModesSupported            []string `json:"response_modes_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// NewDiscovery describes the provider at issuer signing with algs.
func NewDiscovery(issuer string, algs []string) Discovery {
	base := strings.TrimSuffix(issuer, "/")

	return Discovery{
		Issuer:                 issuer,
		AuthorizationEndpoint:  base + PathAuthorize,
		TokenEndpoint:          base + PathToken,
		UserinfoEndpoint:       base + PathUserInfo,
		JwksURI:                base + PathJWKS,
		ScopesSupported:        SupportedScopes(),
		ResponseTypesSupported: []string{"code", "token", "id_token", "code token", "code id_token", "id_token token", "code id_token token"},
		ResponseModesSupported: []string{"query", "fragment"},
		GrantTypesSupported: []string{
			domain.GrantAuthorizationCode,
			domain.GrantClientCredentials,
			domain.GrantPassword,
			domain.GrantImplicit,
		},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  algs,
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{"plain", "S256"},
		ClaimsSupported:                   SupportedClaims(),
	}
}
