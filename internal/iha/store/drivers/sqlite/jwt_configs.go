package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/jmoiron/sqlx"
)

type jwtConfigsRepo struct {
	q sqlx.ExtContext
}

type jwtConfigRow struct {
	ClientID         string `db:"client_id"`
	KeyID            string `db:"key_id"`
	JWKSSealed       []byte `db:"jwks_sealed"`
	Algorithm        string `db:"algorithm"`
	VerificationType string `db:"verification_type"`
	JWKSURL          string `db:"jwks_url"`
	TTLSec           int64  `db:"ttl_sec"`
	UpdatedAt        int64  `db:"updated_at"`
}

// GetJwtConfig returns the client's own config, or the global one stored
// under the empty client id.
func (r *jwtConfigsRepo) GetJwtConfig(ctx context.Context, clientID string) (domain.JwtConfig, error) {
	const query = `SELECT client_id, key_id, jwks_sealed, algorithm, verification_type, jwks_url, ttl_sec, updated_at
		FROM jwt_configs WHERE client_id IN (?, '')
		ORDER BY client_id DESC LIMIT 1`

	var row jwtConfigRow
	err := sqlx.GetContext(ctx, r.q, &row, query, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JwtConfig{}, domain.Newf(domain.KindConfiguration, "no jwt config for client %q and no global default", clientID)
	}
	if err != nil {
		return domain.JwtConfig{}, domain.Wrap(domain.KindInternal, err, "load jwt config")
	}

	jwks, err := cryptox.Open(row.JWKSSealed)
	if err != nil {
		return domain.JwtConfig{}, domain.Wrap(domain.KindConfiguration, err, "unseal jwks")
	}

	return domain.JwtConfig{
		ClientID:         row.ClientID,
		KeyID:            row.KeyID,
		JWKS:             jwks,
		Algorithm:        row.Algorithm,
		VerificationType: domain.VerificationType(row.VerificationType),
		JWKSURL:          row.JWKSURL,
		TTL:              fromSeconds(row.TTLSec),
	}, nil
}

// PutJwtConfig inserts or replaces the config for cfg.ClientID.
func (r *jwtConfigsRepo) PutJwtConfig(ctx context.Context, cfg domain.JwtConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	sealed, err := cryptox.Seal(cfg.JWKS)
	if err != nil {
		return err
	}

	verification := cfg.VerificationType
	if verification == "" {
		verification = domain.VerifyJWKS
	}

	_, err = r.q.ExecContext(ctx, `INSERT INTO jwt_configs
		(client_id, key_id, jwks_sealed, algorithm, verification_type, jwks_url, ttl_sec, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			key_id = excluded.key_id,
			jwks_sealed = excluded.jwks_sealed,
			algorithm = excluded.algorithm,
			verification_type = excluded.verification_type,
			jwks_url = excluded.jwks_url,
			ttl_sec = excluded.ttl_sec,
			updated_at = excluded.updated_at`,
		cfg.ClientID,
		cfg.KeyID,
		sealed,
		cfg.Alg(),
		string(verification),
		cfg.JWKSURL,
		toSeconds(cfg.TTL),
		toMillis(time.Now()),
	)
	return err
}
