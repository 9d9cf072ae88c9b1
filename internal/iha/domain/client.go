package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/iha/pkg/jwtx"
)

// Grant types.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantImplicit          = "implicit"
)

// DefaultCodeTTL applies when a registration leaves CodeTTL unset.
const DefaultCodeTTL = 5 * time.Minute

// ClientDetails is a registered OAuth2 client. Lookups hand out value
// snapshots; the engine never writes them back.
type ClientDetails struct {
	AppID        string
	ClientID     string
	Name         string
	SecretHash   string // argon2 encoded, empty for public clients
	GrantTypes   []string
	RedirectURIs []string
	Scopes       []string

	// ResponseTypes lists allowed response_type values, each a space
	// separated combination such as "code" or "code id_token".
	ResponseTypes []string

	CodeTTL         time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	IDTokenTTL      time.Duration

	RequireProofKey bool
	AutoApprove     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPublic reports whether the client has no secret.
func (c ClientDetails) IsPublic() bool { return c.SecretHash == "" }

// AllowsGrantType reports whether grant is registered for the client.
func (c ClientDetails) AllowsGrantType(grant string) bool {
	return slices.Contains(c.GrantTypes, grant)
}

// AllowsResponseType reports whether rt is registered, ignoring the order
// of its members.
func (c ClientDetails) AllowsResponseType(rt string) bool {
	want := NormalizeResponseType(rt)
	for _, allowed := range c.ResponseTypes {
		if NormalizeResponseType(allowed) == want {
			return true
		}
	}
	return false
}

// HasRedirectURI reports an exact match against a registered redirect URI.
func (c ClientDetails) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// ExcessScopes returns the requested scopes the client is not registered
// for. An empty result means requested is a subset.
func (c ClientDetails) ExcessScopes(requested []string) []string {
	var extra []string
	for _, s := range requested {
		if !slices.Contains(c.Scopes, s) {
			extra = append(extra, s)
		}
	}
	return extra
}

func (c ClientDetails) CodeLifetime() time.Duration {
	return orDefault(c.CodeTTL, DefaultCodeTTL)
}

func (c ClientDetails) AccessTokenLifetime() time.Duration {
	return orDefault(c.AccessTokenTTL, jwtx.DefaultAccessTokenTTL)
}

func (c ClientDetails) IDTokenLifetime() time.Duration {
	return orDefault(c.IDTokenTTL, jwtx.DefaultIDTokenTTL)
}

// NormalizeResponseType sorts the members of a response_type value so
// "id_token code" and "code id_token" compare equal.
func NormalizeResponseType(rt string) string {
	parts := strings.Fields(rt)
	slices.Sort(parts)
	return strings.Join(slices.Compact(parts), " ")
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
