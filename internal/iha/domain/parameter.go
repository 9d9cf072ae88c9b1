package domain

import (
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// Well-known request parameter names.
const (
	ParamPrincipal           = "principal"
	ParamCredentials         = "credentials"
	ParamType                = "type"
	ParamClientID            = "client_id"
	ParamClientSecret        = "client_secret"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamNonce               = "nonce"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
	ParamCodeVerifier        = "code_verifier"
	ParamResponseType        = "response_type"
	ParamGrantType           = "grant_type"
	ParamRedirectURI         = "redirect_uri"
	ParamCode                = "code"
	ParamRememberMe          = "remember_me"
	ParamUserInfo            = "user_info"
	ParamUserApproval        = "user_oauth_approval"
)

// CredentialParams are the fields that carry a secret of the resource
// owner or the client, including the RFC 6749 "password" alias.
var CredentialParams = []string{ParamCredentials, "password", ParamClientSecret, ParamUserInfo}

// loggableParams are written to logs as is. Every other field, known or
// not, is redacted.
var loggableParams = []string{
	ParamPrincipal, "username", ParamType, ParamClientID, ParamScope,
	ParamState, ParamCodeChallengeMethod, ParamResponseType, ParamGrantType,
	ParamRedirectURI, ParamRememberMe, ParamUserApproval,
}

// RequestParameter is the immutable bag of inbound fields for one request.
// Values are coerced on read, so a bag built from url.Values and one built
// from a decoded JSON body answer the same getters.
type RequestParameter struct {
	values map[string]any
}

// NewRequestParameter copies m into a new bag.
func NewRequestParameter(m map[string]any) RequestParameter {
	return RequestParameter{values: maps.Clone(m)}
}

// ParameterFromValues builds a bag from form or query values, keeping the
// first value of each key.
func ParameterFromValues(v url.Values) RequestParameter {
	m := make(map[string]any, len(v))
	for k, vs := range v {
		if len(vs) > 0 {
			m[k] = vs[0]
		}
	}
	return RequestParameter{values: m}
}

// With returns a copy of p with key set to value.
func (p RequestParameter) With(key string, value any) RequestParameter {
	m := make(map[string]any, len(p.values)+1)
	maps.Copy(m, p.values)
	m[key] = value
	return RequestParameter{values: m}
}

// Get returns the raw value of key.
func (p RequestParameter) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present and non-empty.
func (p RequestParameter) Has(key string) bool {
	return p.String(key) != ""
}

// String returns key coerced to a trimmed string, "" when absent.
func (p RequestParameter) String(key string) string {
	return strings.TrimSpace(cast.ToString(p.values[key]))
}

// Bool returns key coerced to a bool ("true", "1", "on" and so on).
func (p RequestParameter) Bool(key string) bool {
	v := p.values[key]
	if s, ok := v.(string); ok && strings.EqualFold(strings.TrimSpace(s), "on") {
		return true
	}
	return cast.ToBool(v)
}

// Fields returns key as a list. Strings are split on whitespace, which is
// how OAuth2 encodes scope and response_type.
func (p RequestParameter) Fields(key string) []string {
	switch v := p.values[key].(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(v)
	default:
		return cast.ToStringSlice(v)
	}
}

// Map returns a copy of the underlying values.
func (p RequestParameter) Map() map[string]any { return maps.Clone(p.values) }

func (p RequestParameter) Principal() string           { return p.String(ParamPrincipal) }
func (p RequestParameter) Credentials() string         { return cast.ToString(p.values[ParamCredentials]) }
func (p RequestParameter) Type() string                { return p.String(ParamType) }
func (p RequestParameter) ClientID() string            { return p.String(ParamClientID) }
func (p RequestParameter) Scope() []string             { return p.Fields(ParamScope) }
func (p RequestParameter) State() string               { return p.String(ParamState) }
func (p RequestParameter) Nonce() string               { return p.String(ParamNonce) }
func (p RequestParameter) CodeChallenge() string       { return p.String(ParamCodeChallenge) }
func (p RequestParameter) CodeChallengeMethod() string { return p.String(ParamCodeChallengeMethod) }
func (p RequestParameter) ResponseType() string        { return p.String(ParamResponseType) }
func (p RequestParameter) GrantType() string           { return p.String(ParamGrantType) }
func (p RequestParameter) RedirectURI() string         { return p.String(ParamRedirectURI) }
func (p RequestParameter) RememberMe() bool            { return p.Bool(ParamRememberMe) }

// LogValue redacts every field outside a fixed allow-list so a parameter
// bag can be logged as is.
func (p RequestParameter) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(p.values))
	for k, v := range p.values {
		if !slices.Contains(loggableParams, k) {
			attrs = append(attrs, slog.String(k, "[redacted]"))
			continue
		}
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.GroupValue(attrs...)
}
