package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/jmoiron/sqlx"
)

type authorizationCodesRepo struct {
	q   sqlx.ExtContext
	now func() time.Time
}

type authorizationCodeRow struct {
	ID                  string `db:"id"`
	CodeHash            string `db:"code_hash"`
	ClientID            string `db:"client_id"`
	UserID              string `db:"user_id"`
	Scopes              string `db:"scopes"`
	RedirectURI         string `db:"redirect_uri"`
	CodeChallenge       string `db:"code_challenge"`
	CodeChallengeMethod string `db:"code_challenge_method"`
	Nonce               string `db:"nonce"`
	ExpiresAt           int64  `db:"expires_at"`
	CreatedAt           int64  `db:"created_at"`
}

const authorizationCodeColumns = `id, code_hash, client_id, user_id, scopes, redirect_uri,
	code_challenge, code_challenge_method, nonce, expires_at, created_at`

func (r *authorizationCodesRepo) Save(ctx context.Context, code domain.AuthorizationCode) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = r.now()
	}

	_, err := r.q.ExecContext(ctx, `INSERT INTO authorization_codes (`+authorizationCodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.CodeHash,
		code.ClientID,
		code.UserID,
		joinFields(code.Scopes),
		code.RedirectURI,
		code.CodeChallenge,
		code.CodeChallengeMethod,
		code.Nonce,
		toMillis(code.ExpiresAt),
		toMillis(code.CreatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// Consume marks the code used and returns it in one statement, so two
// concurrent redemptions cannot both succeed.
func (r *authorizationCodesRepo) Consume(ctx context.Context, codeHash string) (domain.AuthorizationCode, error) {
	now := toMillis(r.now())

	var row authorizationCodeRow
	err := sqlx.GetContext(ctx, r.q, &row, `UPDATE authorization_codes
		SET used_at = ?
		WHERE code_hash = ? AND used_at IS NULL AND expires_at > ?
		RETURNING `+authorizationCodeColumns,
		now, codeHash, now)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	return mapAuthorizationCode(row), nil
}

// DeleteExpired removes expired codes and codes already redeemed.
func (r *authorizationCodesRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at <= ? OR used_at IS NOT NULL`,
		toMillis(r.now()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func mapAuthorizationCode(row authorizationCodeRow) domain.AuthorizationCode {
	return domain.AuthorizationCode{
		ID:                  row.ID,
		CodeHash:            row.CodeHash,
		ClientID:            row.ClientID,
		UserID:              row.UserID,
		Scopes:              splitFields(row.Scopes),
		RedirectURI:         row.RedirectURI,
		CodeChallenge:       row.CodeChallenge,
		CodeChallengeMethod: row.CodeChallengeMethod,
		Nonce:               row.Nonce,
		ExpiresAt:           fromMillis(row.ExpiresAt),
		CreatedAt:           fromMillis(row.CreatedAt),
	}
}
