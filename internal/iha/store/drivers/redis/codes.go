// Package redis keeps authorization codes in Redis so several engine
// instances can share them. Codes expire through the key TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// DefaultKeyPrefix namespaces every key written by CodeStore.
const DefaultKeyPrefix = "iha:code:"

// Config holds the connection settings for NewCodeStore.
type Config struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CodeStore implements store.AuthorizationCodeStore on Redis.
type CodeStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

var _ store.AuthorizationCodeStore = (*CodeStore)(nil)

type storedCode struct {
	ID                  string    `json:"id"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id"`
	Scopes              []string  `json:"scopes"`
	RedirectURI         string    `json:"redirect_uri"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	Nonce               string    `json:"nonce,omitempty"`
	ExpiresAt           time.Time `json:"expires_at"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewCodeStore connects to Redis and verifies the connection.
func NewCodeStore(ctx context.Context, cfg Config) (*CodeStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewCodeStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewCodeStoreWithClient wraps a pre-configured client, e.g. one pointed at
// miniredis in tests.
func NewCodeStoreWithClient(client redis.UniversalClient, keyPrefix string) *CodeStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &CodeStore{client: client, keyPrefix: keyPrefix, now: time.Now}
}

func (s *CodeStore) Close() error { return s.client.Close() }

// Ping checks Redis connectivity.
func (s *CodeStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save stores the code under its fingerprint with a TTL matching its
// remaining lifetime. An already expired code is rejected.
func (s *CodeStore) Save(ctx context.Context, code domain.AuthorizationCode) error {
	ttl := code.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("authorization code %s already expired", code.ID)
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = s.now()
	}

	data, err := json.Marshal(storedCode{
		ID:                  code.ID,
		ClientID:            code.ClientID,
		UserID:              code.UserID,
		Scopes:              code.Scopes,
		RedirectURI:         code.RedirectURI,
		CodeChallenge:       code.CodeChallenge,
		CodeChallengeMethod: code.CodeChallengeMethod,
		Nonce:               code.Nonce,
		ExpiresAt:           code.ExpiresAt,
		CreatedAt:           code.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(code.CodeHash), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store authorization code: %w", err)
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

// Consume reads and deletes the code with GETDEL, so exactly one caller
// ever sees it.
func (s *CodeStore) Consume(ctx context.Context, codeHash string) (domain.AuthorizationCode, error) {
	data, err := s.client.GetDel(ctx, s.key(codeHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}
	if err != nil {
		return domain.AuthorizationCode{}, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	var stored storedCode
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.AuthorizationCode{}, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}

	code := domain.AuthorizationCode{
		ID:                  stored.ID,
		CodeHash:            codeHash,
		ClientID:            stored.ClientID,
		UserID:              stored.UserID,
		Scopes:              stored.Scopes,
		RedirectURI:         stored.RedirectURI,
		CodeChallenge:       stored.CodeChallenge,
		CodeChallengeMethod: stored.CodeChallengeMethod,
		Nonce:               stored.Nonce,
		ExpiresAt:           stored.ExpiresAt,
		CreatedAt:           stored.CreatedAt,
	}

	// The key TTL has second granularity on some servers.
	if code.Expired(s.now()) {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}
	return code, nil
}

// DeleteExpired is a no-op, Redis expires keys on its own.
func (s *CodeStore) DeleteExpired(context.Context) (int64, error) { return 0, nil }

func (s *CodeStore) key(codeHash string) string {
	return s.keyPrefix + codeHash
}
