// Package oidc holds the OpenID Connect pieces that are pure data: the
// scope to claim table, the user info projection and the discovery
// document.
package oidc

import (
	"maps"
	"slices"
)

// Standard scopes.
const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopePhone   = "phone"
	ScopeAddress = "address"
	ScopeRoles   = "roles"
)

// ScopeClaims maps each filtered scope to the claims it releases. The sets
// are disjoint. Claims outside every set, such as sub, are never filtered.
var ScopeClaims = map[string][]string{
	ScopeProfile: {
		"name", "family_name", "given_name", "middle_name", "nickname",
		"preferred_username", "profile", "picture", "website", "gender",
		"birthdate", "zoneinfo", "locale", "updated_at",
	},
	ScopeEmail:   {"email", "email_verified"},
	ScopePhone:   {"phone_number", "phone_number_verified"},
	ScopeAddress: {"address"},
	ScopeRoles:   {"roles"},
}

// Project returns a copy of userInfo without the claims of every scope
// category missing from scopes. Project(Project(m, s), s) equals
// Project(m, s).
func Project(userInfo map[string]any, scopes []string) map[string]any {
	out := maps.Clone(userInfo)
	if out == nil {
		out = map[string]any{}
	}

	for scope, claims := range ScopeClaims {
		if slices.Contains(scopes, scope) {
			continue
		}
		for _, claim := range claims {
			delete(out, claim)
		}
	}
	return out
}

// SupportedScopes lists openid and every filtered scope in a stable order.
func SupportedScopes() []string {
	scopes := slices.Sorted(maps.Keys(ScopeClaims))
	return append([]string{ScopeOpenID}, scopes...)
}

// SupportedClaims lists every claim the projection knows, plus sub.
func SupportedClaims() []string {
	claims := []string{"sub"}
	for _, scope := range slices.Sorted(maps.Keys(ScopeClaims)) {
		claims = append(claims, ScopeClaims[scope]...)
	}
	return claims
}
