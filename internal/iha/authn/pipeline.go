package authn

import (
	"context"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/pkg/slogx"
	"github.com/hashicorp/go-multierror"
)

// PreAuthenticationHook runs before a processor is selected. An error
// aborts the attempt.
type PreAuthenticationHook interface {
	PreAuthenticate(ctx context.Context, param domain.RequestParameter) error
}

// SuccessHook runs after a successful attempt, once the Authentication is
// on the context.
type SuccessHook interface {
	OnSuccess(ctx context.Context, param domain.RequestParameter, auth *domain.Authentication) error
}

// FailureHook observes a failed attempt. Its own errors are logged only.
type FailureHook interface {
	OnFailure(ctx context.Context, param domain.RequestParameter, cause error) error
}

type (
	PreAuthenticationFunc func(ctx context.Context, param domain.RequestParameter) error
	SuccessFunc           func(ctx context.Context, param domain.RequestParameter, auth *domain.Authentication) error
	FailureFunc           func(ctx context.Context, param domain.RequestParameter, cause error) error
)

func (f PreAuthenticationFunc) PreAuthenticate(ctx context.Context, param domain.RequestParameter) error {
	return f(ctx, param)
}

func (f SuccessFunc) OnSuccess(ctx context.Context, param domain.RequestParameter, auth *domain.Authentication) error {
	return f(ctx, param, auth)
}

func (f FailureFunc) OnFailure(ctx context.Context, param domain.RequestParameter, cause error) error {
	return f(ctx, param, cause)
}

// Pipeline is an ordered list of hooks. Hooks run synchronously in
// registration order. A nil Pipeline runs nothing.
type Pipeline struct {
	mu    sync.RWMutex
	hooks []any
}

func NewPipeline() *Pipeline { return &Pipeline{} }

// Register appends hooks. Each must implement at least one hook interface.
func (p *Pipeline) Register(hooks ...any) error {
	for i, h := range hooks {
		switch h.(type) {
		case PreAuthenticationHook, SuccessHook, FailureHook:
		default:
			return domain.Newf(domain.KindConfiguration, "hook %d (%T) implements no pipeline stage", i, h)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, hooks...)
	return nil
}

func (p *Pipeline) snapshot() []any {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hooks
}

// PreAuthenticate stops at the first failing hook.
func (p *Pipeline) PreAuthenticate(ctx context.Context, param domain.RequestParameter) error {
	for _, h := range p.snapshot() {
		hook, ok := h.(PreAuthenticationHook)
		if !ok {
			continue
		}
		if err := hook.PreAuthenticate(ctx, param); err != nil {
			return err
		}
	}
	return nil
}

// Success runs every success hook, even after one fails, and reports all
// of their errors as a single pipeline error.
func (p *Pipeline) Success(ctx context.Context, param domain.RequestParameter, auth *domain.Authentication) error {
	var result *multierror.Error
	for _, h := range p.snapshot() {
		hook, ok := h.(SuccessHook)
		if !ok {
			continue
		}
		if err := hook.OnSuccess(ctx, param, auth); err != nil {
			result = multierror.Append(result, fmt.Errorf("%T: %w", hook, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return domain.Wrap(domain.KindPipeline, err, "success hooks failed")
	}
	return nil
}

// Failure runs every failure hook with the original cause.
func (p *Pipeline) Failure(ctx context.Context, param domain.RequestParameter, cause error) {
	for _, h := range p.snapshot() {
		hook, ok := h.(FailureHook)
		if !ok {
			continue
		}
		if err := hook.OnFailure(ctx, param, cause); err != nil {
			slogx.FromContext(ctx).Warn("failure hook returned an error",
				"hook", fmt.Sprintf("%T", hook),
				"err", err,
			)
		}
	}
}
