// Package authn authenticates request parameters through a registry of
// processors, with pre, success and failure hooks around each attempt.
package authn

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// Manager is stateless apart from its registry and pipeline and is shared
// across requests.
type Manager struct {
	Registry *Registry
	Pipeline *Pipeline
}

func NewManager(registry *Registry, pipeline *Pipeline) *Manager {
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	return &Manager{Registry: registry, Pipeline: pipeline}
}

// Authenticate runs one attempt. On success the returned context carries
// the Authentication, credentials already erased. A success hook error is
// returned together with the Authentication, which stays valid.
func (m *Manager) Authenticate(ctx context.Context, param domain.RequestParameter) (context.Context, *domain.Authentication, error) {
	log := slogx.FromContext(ctx).With("auth_type", param.Type(), "client_id", param.ClientID())

	if err := m.Pipeline.PreAuthenticate(ctx, param); err != nil {
		err = normalize(err)
		m.Pipeline.Failure(ctx, param, err)
		return ctx, nil, err
	}

	processor, err := m.Registry.Select(param)
	if err != nil {
		log.Error("no authentication processor", "err", err)
		return ctx, nil, err
	}

	auth, err := processor.Authenticate(ctx, param)
	if err == nil && auth == nil {
		err = domain.New(domain.KindInternal, "processor returned no authentication")
	}
	if err != nil {
		err = normalize(err)
		if !domain.Public(domain.KindOf(err)) {
			log.Error("authentication failed", "err", err)
		}
		m.Pipeline.Failure(ctx, param, err)
		return ctx, nil, err
	}

	auth.Authenticated = true
	if auth.Type == "" {
		auth.Type = param.Type()
	}
	if auth.ClientID == "" {
		auth.ClientID = param.ClientID()
	}
	auth.EraseCredentials()

	ctx = domain.WithAuthentication(ctx, auth)
	if err := m.Pipeline.Success(ctx, param, auth); err != nil {
		log.Error("success hooks failed", "subject", auth.Subject(), "err", err)
		return ctx, auth, err
	}
	return ctx, auth, nil
}

// normalize tags anything unclassified as internal.
func normalize(err error) error {
	var e *domain.Error
	if errors.As(err, &e) {
		return err
	}
	return domain.Wrap(domain.KindInternal, err, "authentication")
}
