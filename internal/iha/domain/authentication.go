package domain

import "context"

// Authentication is the outcome of an authentication attempt. Principal is
// a *UserDetails for user flows and a *ClientDetails for client flows.
type Authentication struct {
	Principal     any
	Credentials   any
	Authorities   []string
	Authenticated bool
	Type          string
	ClientID      string
}

// User returns the authenticated user, if the principal is one.
func (a *Authentication) User() (*UserDetails, bool) {
	if a == nil {
		return nil, false
	}
	u, ok := a.Principal.(*UserDetails)
	return u, ok
}

// Client returns the authenticated client, if the principal is one.
func (a *Authentication) Client() (*ClientDetails, bool) {
	if a == nil {
		return nil, false
	}
	c, ok := a.Principal.(*ClientDetails)
	return c, ok
}

// Subject is the user id, or the client id for client flows.
func (a *Authentication) Subject() string {
	if u, ok := a.User(); ok {
		return u.ID
	}
	if c, ok := a.Client(); ok {
		return c.ClientID
	}
	return ""
}

// EraseCredentials drops the secret the attempt was made with.
func (a *Authentication) EraseCredentials() {
	a.Credentials = nil
	if u, ok := a.User(); ok {
		u.Credentials = ""
	}
	if c, ok := a.Client(); ok {
		c.SecretHash = ""
	}
}

type authCtxKey struct{}

// WithAuthentication stores a on ctx for the rest of the request.
func WithAuthentication(ctx context.Context, a *Authentication) context.Context {
	return context.WithValue(ctx, authCtxKey{}, a)
}

// AuthenticationFromContext returns the Authentication of the current request.
func AuthenticationFromContext(ctx context.Context) (*Authentication, bool) {
	a, ok := ctx.Value(authCtxKey{}).(*Authentication)
	return a, ok && a != nil
}
