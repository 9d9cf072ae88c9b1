package authn

import (
	"context"
	"errors"
	"sync"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
)

// Processor type keys.
const (
	TypeUsername = "username"
	TypeClient   = "client"
	TypeOAuth2   = "oauth2"
)

// UsernameProcessor checks a username and password against the user store.
type UsernameProcessor struct {
	Users store.UserDetailsStore

	// PrincipalType is passed to LoadByType. Empty means username.
	PrincipalType string
}

func (p *UsernameProcessor) Matches(param domain.RequestParameter) bool {
	return param.Principal() != ""
}

func (p *UsernameProcessor) Authenticate(ctx context.Context, param domain.RequestParameter) (*domain.Authentication, error) {
	principalType := p.PrincipalType
	if principalType == "" {
		principalType = domain.PrincipalUsername
	}

	user, err := p.Users.LoadByType(ctx, param.Principal(), principalType, param.ClientID())
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAccount) {
			burnPasswordCheck(param.Credentials())
		}
		return nil, err
	}

	if err := CheckAccount(user); err != nil {
		return nil, err
	}

	if err := cryptox.VerifyPassword(param.Credentials(), user.Credentials); err != nil {
		return nil, domain.Wrap(domain.KindBadCredentials, err, "bad credentials").
			WithDetail("principal", param.Principal())
	}

	return &domain.Authentication{
		Principal:   &user,
		Credentials: param.Credentials(),
		Authorities: append([]string(nil), user.Authorities...),
		Type:        TypeUsername,
		ClientID:    param.ClientID(),
	}, nil
}

// CheckAccount rejects disabled accounts, then locked ones. It runs before
// any credential comparison so a blocked account answers the same way
// whatever password was sent.
func CheckAccount(u domain.UserDetails) error {
	if u.Disabled {
		return domain.Newf(domain.KindDisabled, "account %s is disabled", u.Principal)
	}
	if u.Locked {
		return domain.Newf(domain.KindLocked, "account %s is locked", u.Principal)
	}
	return nil
}

// dummyHash keeps unknown-account attempts as slow as real ones. Built on
// first use so the pepper is configured by then.
var dummyHash = sync.OnceValue(func() string {
	h, err := cryptox.HashPassword("iha-unknown-account")
	if err != nil {
		return ""
	}
	return h
})

// burnPasswordCheck runs a verification against dummyHash whose result is
// thrown away.
var burnPasswordCheck = func(password string) {
	_ = cryptox.VerifyPassword(password, dummyHash())
}
