package domain

import (
	"maps"
	"time"
)

// UserDetails is an account as the user store hands it out.
type UserDetails struct {
	ID          string
	Principal   string // login name
	Credentials string // argon2 encoded password hash
	Authorities []string
	Claims      map[string]any // OIDC standard claims and anything extra
	Disabled    bool
	Locked      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserInfo returns the unfiltered claim set for the userinfo projection,
// with sub and roles filled from the account itself.
func (u UserDetails) UserInfo() map[string]any {
	info := make(map[string]any, len(u.Claims)+2)
	maps.Copy(info, u.Claims)
	info["sub"] = u.ID
	if len(u.Authorities) > 0 {
		info["roles"] = append([]string(nil), u.Authorities...)
	}
	if _, ok := info["preferred_username"]; !ok && u.Principal != "" {
		info["preferred_username"] = u.Principal
	}
	return info
}

// Principal types understood by UserDetailsStore.LoadByType.
const (
	PrincipalUsername = "username"
	PrincipalEmail    = "email"
	PrincipalID       = "id"
)
