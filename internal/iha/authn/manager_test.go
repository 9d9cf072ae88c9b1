package authn_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*authn.Manager, *authn.Pipeline) {
	t.Helper()
	s := newTestStore(t)

	registry := authn.NewRegistry()
	registry.Add(authn.TypeUsername, &authn.UsernameProcessor{Users: s.Users()})
	registry.Add(authn.TypeClient, &authn.ClientProcessor{Clients: s.Clients()})

	pipeline := authn.NewPipeline()
	return authn.NewManager(registry, pipeline), pipeline
}

func TestAuthenticateUsername(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	t.Run("valid credentials", func(t *testing.T) {
		newCtx, auth, err := m.Authenticate(ctx, usernameParam("admin", adminPassword))
		require.NoError(t, err)
		require.True(t, auth.Authenticated)
		require.Equal(t, authn.TypeUsername, auth.Type)
		require.Equal(t, "test", auth.ClientID)
		require.Equal(t, []string{"admin"}, auth.Authorities)

		user, ok := auth.User()
		require.True(t, ok)
		require.Equal(t, "123", user.ID)
		require.Empty(t, user.Credentials)
		require.Nil(t, auth.Credentials)

		cached, ok := domain.AuthenticationFromContext(newCtx)
		require.True(t, ok)
		require.Same(t, auth, cached)

		_, ok = domain.AuthenticationFromContext(ctx)
		require.False(t, ok)
	})

	t.Run("wrong password is bad credentials", func(t *testing.T) {
		_, auth, err := m.Authenticate(ctx, usernameParam("admin", "wrong"))
		require.Nil(t, auth)
		require.ErrorIs(t, err, domain.ErrBadCredentials)
		require.NotErrorIs(t, err, domain.ErrUnknownAccount)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, _, err := m.Authenticate(ctx, usernameParam("ghost", adminPassword))
		require.ErrorIs(t, err, domain.ErrUnknownAccount)
	})

	t.Run("disabled regardless of credentials", func(t *testing.T) {
		_, _, errRight := m.Authenticate(ctx, usernameParam("disabled", adminPassword))
		_, _, errWrong := m.Authenticate(ctx, usernameParam("disabled", "wrong"))

		require.ErrorIs(t, errRight, domain.ErrDisabled)
		require.ErrorIs(t, errWrong, domain.ErrDisabled)
		require.Equal(t, domain.KindOf(errRight), domain.KindOf(errWrong))
	})

	t.Run("locked regardless of credentials", func(t *testing.T) {
		_, _, errRight := m.Authenticate(ctx, usernameParam("locked", adminPassword))
		_, _, errWrong := m.Authenticate(ctx, usernameParam("locked", "wrong"))

		require.ErrorIs(t, errRight, domain.ErrLocked)
		require.ErrorIs(t, errWrong, domain.ErrLocked)
	})

	t.Run("disabled is checked before locked", func(t *testing.T) {
		_, _, err := m.Authenticate(ctx, usernameParam("both", "wrong"))
		require.ErrorIs(t, err, domain.ErrDisabled)
	})
}

func TestAuthenticateClient(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	param := func(clientID, secret string) domain.RequestParameter {
		return domain.NewRequestParameter(map[string]any{
			domain.ParamType:         authn.TypeClient,
			domain.ParamClientID:     clientID,
			domain.ParamClientSecret: secret,
		})
	}

	t.Run("valid secret", func(t *testing.T) {
		_, auth, err := m.Authenticate(ctx, param("test", clientSecret))
		require.NoError(t, err)
		require.Equal(t, "test", auth.Subject())
		require.Equal(t, []string{"openid", "profile"}, auth.Authorities)

		client, ok := auth.Client()
		require.True(t, ok)
		require.Empty(t, client.SecretHash)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, _, err := m.Authenticate(ctx, param("test", "nope"))
		require.ErrorIs(t, err, domain.ErrBadCredentials)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, _, err := m.Authenticate(ctx, param("ghost", clientSecret))
		require.ErrorIs(t, err, domain.ErrInvalidClient)
	})

	t.Run("unknown client costs a hash like a known one", func(t *testing.T) {
		var burned int
		restore := authn.CountPasswordChecks(&burned)
		t.Cleanup(restore)

		_, _, err := m.Authenticate(ctx, param("ghost", clientSecret))
		require.ErrorIs(t, err, domain.ErrInvalidClient)
		require.Equal(t, 1, burned)

		_, _, err = m.Authenticate(ctx, param("test", "nope"))
		require.ErrorIs(t, err, domain.ErrBadCredentials)
		require.Equal(t, 1, burned, "a known client verifies its own hash")
	})

	t.Run("public client cannot use a secret", func(t *testing.T) {
		_, _, err := m.Authenticate(ctx, param("spa", "anything"))
		require.ErrorIs(t, err, domain.ErrInvalidClient)
	})
}

type stubProcessor struct {
	name  string
	match bool
	calls *[]string
}

func (p stubProcessor) Matches(domain.RequestParameter) bool { return p.match }

func (p stubProcessor) Authenticate(context.Context, domain.RequestParameter) (*domain.Authentication, error) {
	*p.calls = append(*p.calls, p.name)
	return &domain.Authentication{Principal: &domain.UserDetails{ID: p.name}}, nil
}

func TestRegistrySelection(t *testing.T) {
	ctx := context.Background()
	var calls []string

	registry := authn.NewRegistry()
	registry.AddAll("custom",
		stubProcessor{name: "skipped", match: false, calls: &calls},
		stubProcessor{name: "first", match: true, calls: &calls},
		stubProcessor{name: "second", match: true, calls: &calls},
	)
	require.Equal(t, []string{"custom"}, registry.Types())

	var failures int
	pipeline := authn.NewPipeline()
	require.NoError(t, pipeline.Register(authn.FailureFunc(func(context.Context, domain.RequestParameter, error) error {
		failures++
		return nil
	})))
	m := authn.NewManager(registry, pipeline)

	t.Run("first match wins", func(t *testing.T) {
		param := domain.NewRequestParameter(map[string]any{domain.ParamType: "custom"})
		_, auth, err := m.Authenticate(ctx, param)
		require.NoError(t, err)
		require.Equal(t, "first", auth.Subject())
		require.Equal(t, "custom", auth.Type)
		require.Equal(t, []string{"first"}, calls)
	})

	t.Run("no processor is a configuration error", func(t *testing.T) {
		param := domain.NewRequestParameter(map[string]any{domain.ParamType: "sms"})
		_, auth, err := m.Authenticate(ctx, param)
		require.Nil(t, auth)
		require.ErrorIs(t, err, authn.ErrNoProcessor)
		require.ErrorIs(t, err, domain.ErrConfiguration)
		require.NotErrorIs(t, err, domain.ErrBadCredentials)
		require.Zero(t, failures)
	})
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("hooks run in registration order", func(t *testing.T) {
		m, pipeline := newManager(t)

		var order []string
		record := func(name string) authn.SuccessFunc {
			return func(context.Context, domain.RequestParameter, *domain.Authentication) error {
				order = append(order, name)
				return nil
			}
		}
		require.NoError(t, pipeline.Register(record("a"), record("b")))
		require.NoError(t, pipeline.Register(record("c")))

		_, _, err := m.Authenticate(ctx, usernameParam("admin", adminPassword))
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, order)
	})

	t.Run("success hook sees the cached authentication", func(t *testing.T) {
		m, pipeline := newManager(t)

		var seen string
		require.NoError(t, pipeline.Register(authn.SuccessFunc(
			func(ctx context.Context, _ domain.RequestParameter, _ *domain.Authentication) error {
				a, ok := domain.AuthenticationFromContext(ctx)
				require.True(t, ok)
				seen = a.Subject()
				return nil
			})))

		_, _, err := m.Authenticate(ctx, usernameParam("admin", adminPassword))
		require.NoError(t, err)
		require.Equal(t, "123", seen)
	})

	t.Run("pre hook error aborts and fires failure hooks", func(t *testing.T) {
		m, pipeline := newManager(t)
		blocked := domain.New(domain.KindLocked, "too many attempts")

		var failed error
		require.NoError(t, pipeline.Register(
			authn.PreAuthenticationFunc(func(context.Context, domain.RequestParameter) error { return blocked }),
			authn.FailureFunc(func(_ context.Context, _ domain.RequestParameter, cause error) error {
				failed = cause
				return nil
			}),
		))

		_, auth, err := m.Authenticate(ctx, usernameParam("admin", adminPassword))
		require.Nil(t, auth)
		require.ErrorIs(t, err, domain.ErrLocked)
		require.Same(t, blocked, failed)
	})

	t.Run("success hook errors are aggregated, authentication survives", func(t *testing.T) {
		m, pipeline := newManager(t)

		var ran int
		failing := func(msg string) authn.SuccessFunc {
			return func(context.Context, domain.RequestParameter, *domain.Authentication) error {
				ran++
				return errors.New(msg)
			}
		}
		require.NoError(t, pipeline.Register(failing("sso down"), failing("audit down")))

		newCtx, auth, err := m.Authenticate(ctx, usernameParam("admin", adminPassword))
		require.ErrorIs(t, err, domain.ErrPipeline)
		require.Contains(t, err.Error(), "sso down")
		require.Contains(t, err.Error(), "audit down")
		require.Equal(t, 2, ran)

		require.NotNil(t, auth)
		require.True(t, auth.Authenticated)
		_, ok := domain.AuthenticationFromContext(newCtx)
		require.True(t, ok)
	})

	t.Run("failure hook errors do not replace the cause", func(t *testing.T) {
		m, pipeline := newManager(t)

		var second bool
		require.NoError(t, pipeline.Register(
			authn.FailureFunc(func(context.Context, domain.RequestParameter, error) error {
				return errors.New("hook broke")
			}),
			authn.FailureFunc(func(context.Context, domain.RequestParameter, error) error {
				second = true
				return nil
			}),
		))

		_, _, err := m.Authenticate(ctx, usernameParam("admin", "wrong"))
		require.ErrorIs(t, err, domain.ErrBadCredentials)
		require.True(t, second)
	})

	t.Run("register rejects values that are not hooks", func(t *testing.T) {
		err := authn.NewPipeline().Register("not a hook")
		require.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("nil pipeline runs nothing", func(t *testing.T) {
		var p *authn.Pipeline
		require.NoError(t, p.PreAuthenticate(ctx, domain.RequestParameter{}))
		require.NoError(t, p.Success(ctx, domain.RequestParameter{}, &domain.Authentication{}))
		p.Failure(ctx, domain.RequestParameter{}, errors.New("x"))
	})
}

func TestConcurrentAuthenticationsDoNotShareState(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	type result struct {
		subject string
		err     error
	}
	results := make(chan result, 2)
	for _, p := range []domain.RequestParameter{
		usernameParam("admin", adminPassword),
		usernameParam("admin", "wrong"),
	} {
		go func() {
			newCtx, _, err := m.Authenticate(ctx, p)
			a, _ := domain.AuthenticationFromContext(newCtx)
			results <- result{subject: a.Subject(), err: err}
		}()
	}

	var ok, bad int
	for range 2 {
		r := <-results
		switch {
		case r.err == nil:
			require.Equal(t, "123", r.subject)
			ok++
		default:
			require.ErrorIs(t, r.err, domain.ErrBadCredentials)
			require.Empty(t, r.subject)
			bad++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, bad)
}
