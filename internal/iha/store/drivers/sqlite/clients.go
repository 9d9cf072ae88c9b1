package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/jmoiron/sqlx"
)

type clientsRepo struct {
	q sqlx.ExtContext
}

type clientRow struct {
	AppID              string         `db:"app_id"`
	ClientID           string         `db:"client_id"`
	Name               string         `db:"name"`
	SecretHash         sql.NullString `db:"secret_hash"`
	GrantTypes         string         `db:"grant_types"`
	RedirectURIs       string         `db:"redirect_uris"`
	Scopes             string         `db:"scopes"`
	ResponseTypes      string         `db:"response_types"`
	CodeTTLSec         int64          `db:"code_ttl_sec"`
	AccessTokenTTLSec  int64          `db:"access_token_ttl_sec"`
	RefreshTokenTTLSec int64          `db:"refresh_token_ttl_sec"`
	IDTokenTTLSec      int64          `db:"id_token_ttl_sec"`
	RequireProofKey    bool           `db:"require_proof_key"`
	AutoApprove        bool           `db:"auto_approve"`
	CreatedAt          int64          `db:"created_at"`
	UpdatedAt          int64          `db:"updated_at"`
}

const clientColumns = `app_id, client_id, name, secret_hash, grant_types, redirect_uris, scopes,
	response_types, code_ttl_sec, access_token_ttl_sec, refresh_token_ttl_sec, id_token_ttl_sec,
	require_proof_key, auto_approve, created_at, updated_at`

func (r *clientsRepo) GetByAppID(ctx context.Context, appID string) (domain.ClientDetails, error) {
	var row clientRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+clientColumns+` FROM clients WHERE app_id = ?`, appID)
	if err != nil {
		return domain.ClientDetails{}, mapNotFound(err)
	}
	return mapClient(row), nil
}

func (r *clientsRepo) GetByClientID(ctx context.Context, clientID string) (domain.ClientDetails, error) {
	var row clientRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+clientColumns+` FROM clients WHERE client_id = ?`, clientID)
	if err != nil {
		return domain.ClientDetails{}, mapNotFound(err)
	}
	return mapClient(row), nil
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.ClientDetails) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	_, err := r.q.ExecContext(ctx, `INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.AppID,
		c.ClientID,
		c.Name,
		mapStringNull(c.SecretHash),
		joinFields(c.GrantTypes),
		joinFields(c.RedirectURIs),
		joinFields(c.Scopes),
		strings.Join(c.ResponseTypes, ","),
		toSeconds(c.CodeTTL),
		toSeconds(c.AccessTokenTTL),
		toSeconds(c.RefreshTokenTTL),
		toSeconds(c.IDTokenTTL),
		c.RequireProofKey,
		c.AutoApprove,
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *clientsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := sqlx.GetContext(ctx, r.q, &count, `SELECT COUNT(*) FROM clients`); err != nil {
		return false, err
	}
	return count == 0, nil
}

func mapClient(row clientRow) domain.ClientDetails {
	var responseTypes []string
	for rt := range strings.SplitSeq(row.ResponseTypes, ",") {
		if rt = strings.TrimSpace(rt); rt != "" {
			responseTypes = append(responseTypes, rt)
		}
	}

	return domain.ClientDetails{
		AppID:           row.AppID,
		ClientID:        row.ClientID,
		Name:            row.Name,
		SecretHash:      row.SecretHash.String,
		GrantTypes:      splitFields(row.GrantTypes),
		RedirectURIs:    splitFields(row.RedirectURIs),
		Scopes:          splitFields(row.Scopes),
		ResponseTypes:   responseTypes,
		CodeTTL:         fromSeconds(row.CodeTTLSec),
		AccessTokenTTL:  fromSeconds(row.AccessTokenTTLSec),
		RefreshTokenTTL: fromSeconds(row.RefreshTokenTTLSec),
		IDTokenTTL:      fromSeconds(row.IDTokenTTLSec),
		RequireProofKey: row.RequireProofKey,
		AutoApprove:     row.AutoApprove,
		CreatedAt:       fromMillis(row.CreatedAt),
		UpdatedAt:       fromMillis(row.UpdatedAt),
	}
}
