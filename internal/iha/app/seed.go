package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/aussiebroadwan/iha/pkg/jwtx"
)

// Seed writes the signing configs, clients and users declared in cfg.
// Existing clients and users are left untouched, so Seed is safe to run on
// every start. It returns the ids of clients with their own signing key.
func Seed(ctx context.Context, st store.Store, cfg Config, logger *slog.Logger) ([]string, error) {
	if err := seedJwtConfig(ctx, st.JwtConfigs(), cfg.Global, logger); err != nil {
		return nil, fmt.Errorf("global jwt config: %w", err)
	}

	var keyClients []string
	err := st.WithTx(ctx, func(tx store.Tx) error {
		for _, c := range cfg.Clients {
			created, err := seedClient(ctx, tx.Clients(), c)
			if err != nil {
				return fmt.Errorf("client %s: %w", c.ClientID, err)
			}
			if created {
				logger.Info("client registered", "client_id", c.ClientID, "public", c.Secret == "")
			}
		}

		for _, u := range cfg.Users {
			created, err := seedUser(ctx, tx.Users(), u)
			if err != nil {
				return fmt.Errorf("user %s: %w", u.Username, err)
			}
			if created {
				logger.Info("user created", "user_id", u.ID, "username", u.Username)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range cfg.Clients {
		if c.JWT == nil {
			continue
		}
		seed := *c.JWT
		seed.ClientID = c.ClientID
		if err := seedJwtConfig(ctx, st.JwtConfigs(), seed, logger); err != nil {
			return nil, fmt.Errorf("jwt config for %s: %w", c.ClientID, err)
		}
		keyClients = append(keyClients, c.ClientID)
	}

	return keyClients, nil
}

// seedJwtConfig stores seed when it names a JWKS file, and otherwise only
// when no usable config exists yet, generating a fresh key.
func seedJwtConfig(ctx context.Context, configs store.JwtConfigs, seed JwtSeed, logger *slog.Logger) error {
	if seed.JWKSFile == "" {
		existing, err := configs.GetJwtConfig(ctx, seed.ClientID)
		if err == nil && existing.ClientID == seed.ClientID {
			return nil
		}
		if err != nil && domain.KindOf(err) != domain.KindConfiguration {
			return err
		}
	}

	cfg := domain.JwtConfig{
		ClientID:         seed.ClientID,
		KeyID:            seed.KeyID,
		Algorithm:        seed.Algorithm,
		VerificationType: domain.VerificationType(seed.Verification),
		JWKSURL:          seed.JWKSURL,
		TTL:              seed.TTL.Std(),
	}
	if cfg.KeyID == "" {
		kid, err := jwtx.NewKeyID()
		if err != nil {
			return err
		}
		cfg.KeyID = kid
	}

	if seed.JWKSFile != "" {
		raw, err := os.ReadFile(seed.JWKSFile)
		if err != nil {
			return fmt.Errorf("failed to read jwks file: %w", err)
		}
		cfg.JWKS = raw
	} else {
		raw, err := jwtx.GenerateJWKS(cfg.Alg(), cfg.KeyID, 0)
		if err != nil {
			return err
		}
		cfg.JWKS = raw
		logger.Warn("generated signing key", "client_id", seed.ClientID, "kid", cfg.KeyID, "alg", cfg.Alg())
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := jwtx.ParseKeySet(cfg.JWKS); err != nil {
		return domain.FromJWT(err)
	}

	return configs.PutJwtConfig(ctx, cfg)
}

func seedClient(ctx context.Context, clients store.Clients, seed ClientSeed) (bool, error) {
	if seed.ClientID == "" {
		return false, errors.New("client_id is required")
	}

	c := domain.ClientDetails{
		AppID:           orString(seed.AppID, seed.ClientID),
		ClientID:        seed.ClientID,
		Name:            seed.Name,
		Scopes:          seed.Scopes,
		RedirectURIs:    seed.RedirectURIs,
		GrantTypes:      seed.GrantTypes,
		ResponseTypes:   seed.ResponseTypes,
		RequireProofKey: seed.RequireProofKey,
		AutoApprove:     seed.AutoApprove,
		CodeTTL:         seed.CodeTTL.Std(),
		AccessTokenTTL:  seed.AccessTokenTTL.Std(),
		IDTokenTTL:      seed.IDTokenTTL.Std(),
	}
	if len(c.GrantTypes) == 0 {
		c.GrantTypes = []string{domain.GrantAuthorizationCode}
	}
	if len(c.ResponseTypes) == 0 {
		c.ResponseTypes = []string{"code"}
	}
	if seed.Secret != "" {
		hash, err := cryptox.HashPassword(seed.Secret)
		if err != nil {
			return false, err
		}
		c.SecretHash = hash
	}

	err := clients.CreateClient(ctx, c)
	if errors.Is(err, store.ErrAlreadyExists) {
		return false, nil
	}
	return err == nil, err
}

func seedUser(ctx context.Context, users store.Users, seed UserSeed) (bool, error) {
	if seed.ID == "" || seed.Username == "" {
		return false, errors.New("id and username are required")
	}

	u := domain.UserDetails{
		ID:          seed.ID,
		Principal:   seed.Username,
		Authorities: seed.Authorities,
		Claims:      seed.Claims,
		Disabled:    seed.Disabled,
		Locked:      seed.Locked,
	}
	if seed.Password != "" {
		hash, err := cryptox.HashPassword(seed.Password)
		if err != nil {
			return false, err
		}
		u.Credentials = hash
	}

	err := users.CreateUser(ctx, u)
	if errors.Is(err, store.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, id := range seed.Identities {
		if err := users.LinkIdentity(ctx, id.Issuer, id.Subject, u.ID); err != nil {
			return false, fmt.Errorf("link identity %s: %w", id.Issuer, err)
		}
	}
	return true, nil
}
