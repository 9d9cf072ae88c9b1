package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// ClientDetailsStore resolves client registrations. Both lookups return
// ErrNotFound when nothing matches.
type ClientDetailsStore interface {
	GetByAppID(ctx context.Context, appID string) (domain.ClientDetails, error)
	GetByClientID(ctx context.Context, clientID string) (domain.ClientDetails, error)
}

// UserDetailsStore resolves accounts. Every method fails with an error
// matching domain.ErrUnknownAccount when no account matches.
type UserDetailsStore interface {
	// LoadByType resolves principal interpreted as principalType, e.g. a
	// username or an email address. clientID scopes the lookup for stores
	// that partition accounts per client.
	LoadByType(ctx context.Context, principal, principalType, clientID string) (domain.UserDetails, error)

	// LoadByParameter resolves the account named by a request parameter bag.
	LoadByParameter(ctx context.Context, param domain.RequestParameter, clientID string) (domain.UserDetails, error)

	LoadByID(ctx context.Context, id string) (domain.UserDetails, error)

	// FromToken resolves the account linked to an upstream identity, given
	// the verified token and its user info claims.
	FromToken(ctx context.Context, tokenType, token string, userInfo map[string]any) (domain.UserDetails, error)
}

// JwtConfigProvider returns signing material. An empty clientID asks for
// the global default; a client without its own config falls back to it.
type JwtConfigProvider interface {
	GetJwtConfig(ctx context.Context, clientID string) (domain.JwtConfig, error)
}

// AuthorizationCodeStore holds minted authorization codes.
type AuthorizationCodeStore interface {
	Save(ctx context.Context, code domain.AuthorizationCode) error

	// Consume atomically returns and invalidates the unexpired code with
	// the given fingerprint. A second call for the same code, or a call
	// for an expired one, returns ErrNotFound.
	Consume(ctx context.Context, codeHash string) (domain.AuthorizationCode, error)

	DeleteExpired(ctx context.Context) (int64, error)
}

// ApprovalStore remembers the scopes each user consented to per client.
type ApprovalStore interface {
	// GetApproval returns ErrNotFound when the user never approved the
	// client.
	GetApproval(ctx context.Context, userID, clientID string) (domain.Approval, error)

	// SaveApproval replaces any earlier approval for the same user and
	// client.
	SaveApproval(ctx context.Context, a domain.Approval) error

	RevokeApproval(ctx context.Context, userID, clientID string) error
}

// Clients adds the registration side used for seeding to ClientDetailsStore.
type Clients interface {
	ClientDetailsStore
	CreateClient(ctx context.Context, c domain.ClientDetails) error
	IsEmpty(ctx context.Context) (bool, error)
}

// Users adds the account management side used for seeding to UserDetailsStore.
type Users interface {
	UserDetailsStore
	CreateUser(ctx context.Context, u domain.UserDetails) error

	// LinkIdentity binds an upstream (issuer, subject) pair to a local
	// account for FromToken.
	LinkIdentity(ctx context.Context, issuer, subject, userID string) error
	IsEmpty(ctx context.Context) (bool, error)
}

// JwtConfigs adds writes to JwtConfigProvider. Stored JWKS documents are
// sealed at rest.
type JwtConfigs interface {
	JwtConfigProvider
	PutJwtConfig(ctx context.Context, cfg domain.JwtConfig) error
}

// Store is the root data access interface implemented by the sql drivers.
// Sub-repositories are methods so a Tx-scoped Store hands out repositories
// bound to the same transaction.
type Store interface {
	Clients() Clients
	Users() Users
	JwtConfigs() JwtConfigs
	AuthorizationCodes() AuthorizationCodeStore
	Approvals() ApprovalStore

	ApplyMigrations() error

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Pinger is implemented by stores with a backing connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
