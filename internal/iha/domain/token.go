package domain

import "time"

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"

// AccessToken is an issued credential. Token is the compact JWS.
type AccessToken struct {
	Token     string
	UserID    string
	ClientID  string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired compares the expiry against now. There is no revocation list.
func (t AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresIn is the remaining lifetime in whole seconds, never negative.
func (t AccessToken) ExpiresIn(now time.Time) int64 {
	return max(int64(t.ExpiresAt.Sub(now).Seconds()), 0)
}

// AuthorizationCode is a minted code as held by the code store. Only the
// fingerprint of the code is kept. RedirectURI is the redirect_uri sent
// with the authorization request, empty when it was omitted.
type AuthorizationCode struct {
	ID                  string
	CodeHash            string
	ClientID            string
	UserID              string
	Scopes              []string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	ExpiresAt           time.Time
	CreatedAt           time.Time
}

func (c AuthorizationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TokenResponse is the token endpoint success body (RFC 6749 section 5.1).
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
	IDToken     string `json:"id_token,omitempty"`
}
