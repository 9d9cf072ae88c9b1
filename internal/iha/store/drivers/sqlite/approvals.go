package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/jmoiron/sqlx"
)

type approvalsRepo struct {
	q   sqlx.ExtContext
	now func() time.Time
}

type approvalRow struct {
	UserID    string `db:"user_id"`
	ClientID  string `db:"client_id"`
	Scopes    string `db:"scopes"`
	ExpiresAt int64  `db:"expires_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r *approvalsRepo) GetApproval(ctx context.Context, userID, clientID string) (domain.Approval, error) {
	var row approvalRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT user_id, client_id, scopes, expires_at, updated_at
		FROM user_approvals WHERE user_id = ? AND client_id = ?`, userID, clientID)
	if err != nil {
		return domain.Approval{}, mapNotFound(err)
	}
	return domain.Approval{
		UserID:    row.UserID,
		ClientID:  row.ClientID,
		Scopes:    splitFields(row.Scopes),
		ExpiresAt: fromMillis(row.ExpiresAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
	}, nil
}

func (r *approvalsRepo) SaveApproval(ctx context.Context, a domain.Approval) error {
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = r.now()
	}

	_, err := r.q.ExecContext(ctx, `INSERT INTO user_approvals
		(user_id, client_id, scopes, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, client_id) DO UPDATE SET
			scopes = excluded.scopes,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		a.UserID,
		a.ClientID,
		joinFields(a.Scopes),
		toMillis(a.ExpiresAt),
		toMillis(a.UpdatedAt),
	)
	return err
}

func (r *approvalsRepo) RevokeApproval(ctx context.Context, userID, clientID string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM user_approvals WHERE user_id = ? AND client_id = ?`, userID, clientID)
	return err
}
