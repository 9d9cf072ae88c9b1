package ihasdk

import "github.com/aussiebroadwan/iha/pkg/jwtx"

// ErrorResponse is the RFC 6749 error body as it appears on the wire.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse is the token endpoint success body.
type TokenResponse struct {
	// AccessToken is a signed JWT.
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// Scope is the space delimited list of granted scopes.
	Scope string `json:"scope,omitempty"`

	// IDToken is present when openid was granted to a user flow.
	IDToken string `json:"id_token,omitempty"`
}

// UserInfo is the claim set returned by the userinfo endpoint, filtered by
// the scopes of the access token.
type UserInfo map[string]any

// Subject returns the sub claim.
func (u UserInfo) Subject() string {
	s, _ := u["sub"].(string)
	return s
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	// Uptime is a Go duration string, e.g. "1h23m45s".
	Uptime string `json:"uptime,omitempty"`

	Version string `json:"version,omitempty"`

	// Checks is only set by /readyz.
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each readiness dependency.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse is the public key set published by the server.
type JWKSResponse jwtx.JWKS

// Discovery is the subset of the OpenID Provider metadata the SDK uses.
type Discovery struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	UserinfoEndpoint      string   `json:"userinfo_endpoint"`
	JwksURI               string   `json:"jwks_uri"`
	ScopesSupported       []string `json:"scopes_supported"`
	ResponseTypes         []string `json:"response_types_supported"`
	SigningAlgs           []string `json:"id_token_signing_alg_values_supported"`
}
