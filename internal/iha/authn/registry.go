package authn

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
)

// Processor validates one kind of credential. Several processors may share
// a type key; the first whose Matches reports true handles the attempt.
type Processor interface {
	Matches(param domain.RequestParameter) bool
	Authenticate(ctx context.Context, param domain.RequestParameter) (*domain.Authentication, error)
}

// ErrNoProcessor is a setup problem, not a failed login.
var ErrNoProcessor = domain.New(domain.KindConfiguration, "no authentication processor matches the request")

// Registry maps type keys to processors in registration order. Built at
// startup and read concurrently afterwards.
type Registry struct {
	mu         sync.RWMutex
	processors map[string][]Processor
}

func NewRegistry() *Registry {
	return &Registry{processors: make(map[string][]Processor)}
}

// Add registers p under typ after any processor already there.
func (r *Registry) Add(typ string, p Processor) {
	r.AddAll(typ, p)
}

// AddAll registers ps under typ, keeping their order.
func (r *Registry) AddAll(typ string, ps ...Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[typ] = append(r.processors[typ], ps...)
}

// Types lists the registered type keys.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.processors))
	for typ := range r.processors {
		types = append(types, typ)
	}
	return types
}

// Select returns the first processor registered for the declared type of
// param that accepts it.
func (r *Registry) Select(param domain.RequestParameter) (Processor, error) {
	typ := param.Type()

	r.mu.RLock()
	candidates := r.processors[typ]
	r.mu.RUnlock()

	for _, p := range candidates {
		if p.Matches(param) {
			return p, nil
		}
	}
	return nil, ErrNoProcessor.WithDetail("type", typ)
}
