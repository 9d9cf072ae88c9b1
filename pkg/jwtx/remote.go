package jwtx

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// DefaultRegisterTimeout bounds the first fetch of a JWKS endpoint.
const DefaultRegisterTimeout = 5 * time.Second

// RemoteKeys resolves verification keys from HTTPS JWKS endpoints. Fetched
// sets are cached and refreshed in the background by the jwx cache.
type RemoteKeys struct {
	cache *jwk.Cache

	// RegisterTimeout bounds the first fetch of each endpoint.
	RegisterTimeout time.Duration

	mu         sync.Mutex
	registered map[string]bool
}

// NewRemoteKeys starts a JWKS cache bound to ctx. client may be nil.
func NewRemoteKeys(ctx context.Context, client *http.Client) (*RemoteKeys, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(client)))
	if err != nil {
		return nil, fmt.Errorf("jwtx: create jwks cache: %w", err)
	}

	return &RemoteKeys{
		cache:           cache,
		RegisterTimeout: DefaultRegisterTimeout,
		registered:      make(map[string]bool),
	}, nil
}

// ensureRegistered registers url with the cache until a first fetch
// succeeds. A failed attempt is dropped from the cache so the next call
// fetches again.
func (r *RemoteKeys) ensureRegistered(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered[url] {
		return nil
	}

	timeout := r.RegisterTimeout
	if timeout <= 0 {
		timeout = DefaultRegisterTimeout
	}
	regCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if r.cache.IsRegistered(regCtx, url) {
		_ = r.cache.Unregister(regCtx, url)
	}

	if err := r.cache.Register(regCtx, url); err != nil {
		_ = r.cache.Unregister(ctx, url)
		return fmt.Errorf("register jwks url: %w", err)
	}
	r.registered[url] = true
	return nil
}

// Key returns the raw public key for kid at url, if it fits alg.
func (r *RemoteKeys) Key(ctx context.Context, url, kid, alg string) (any, error) {
	if kid == "" {
		return nil, fmt.Errorf("%w: token header has no kid", ErrInvalidKey)
	}

	if err := r.ensureRegistered(ctx, url); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	set, err := r.cache.Lookup(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup jwks: %v", ErrInvalidKey, err)
	}

	key, found := set.LookupKeyID(kid)
	if !found {
		// The issuer may have rotated keys since the last fetch.
		if set, err = r.cache.Refresh(ctx, url); err == nil {
			key, found = set.LookupKeyID(kid)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: kid %q not in %s", ErrInvalidKey, kid, url)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("%w: export key: %v", ErrInvalidKey, err)
	}

	if !KeyFitsAlgorithm(raw, alg) {
		return nil, fmt.Errorf("%w: kid %q does not fit %s", ErrInvalidKey, kid, alg)
	}
	return raw, nil
}
