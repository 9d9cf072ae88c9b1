package domain

import (
	"slices"
	"time"
)

// DefaultApprovalTTL bounds how long a recorded consent is honoured.
const DefaultApprovalTTL = 30 * 24 * time.Hour

// Approval records the scopes a user consented to for one client.
type Approval struct {
	UserID    string
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time // zero never expires
	UpdatedAt time.Time
}

// Covers reports whether the approval is live at now and includes every
// scope in requested.
func (a Approval) Covers(requested []string, now time.Time) bool {
	if !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt) {
		return false
	}
	for _, s := range requested {
		if !slices.Contains(a.Scopes, s) {
			return false
		}
	}
	return true
}

// Missing returns the requested scopes the approval does not include.
func (a Approval) Missing(requested []string) []string {
	var out []string
	for _, s := range requested {
		if !slices.Contains(a.Scopes, s) {
			out = append(out, s)
		}
	}
	return out
}
