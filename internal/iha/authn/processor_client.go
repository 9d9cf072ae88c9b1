package authn

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
)

// ClientProcessor authenticates a confidential client by id and secret,
// for the client_credentials grant and client authentication at the token
// endpoint.
type ClientProcessor struct {
	Clients store.ClientDetailsStore
}

func (p *ClientProcessor) Matches(param domain.RequestParameter) bool {
	return param.ClientID() != ""
}

func (p *ClientProcessor) Authenticate(ctx context.Context, param domain.RequestParameter) (*domain.Authentication, error) {
	secret := param.String(domain.ParamClientSecret)
	if secret == "" {
		secret = param.Credentials()
	}

	// Unknown and public clients pay for a hash too, so response time does
	// not reveal which client ids exist.
	client, err := p.Clients.GetByClientID(ctx, param.ClientID())
	if errors.Is(err, store.ErrNotFound) {
		burnPasswordCheck(secret)
		return nil, domain.Newf(domain.KindInvalidClient, "unknown client %q", param.ClientID())
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, err, "load client")
	}

	if client.IsPublic() {
		burnPasswordCheck(secret)
		return nil, domain.Newf(domain.KindInvalidClient, "client %q has no secret", client.ClientID)
	}

	if err := cryptox.VerifyPassword(secret, client.SecretHash); err != nil {
		return nil, domain.Wrap(domain.KindBadCredentials, err, "bad client credentials").
			WithDetail("client_id", client.ClientID)
	}

	return &domain.Authentication{
		Principal:   &client,
		Credentials: secret,
		Authorities: append([]string(nil), client.Scopes...),
		Type:        TypeClient,
		ClientID:    client.ClientID,
	}, nil
}
