package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/jmoiron/sqlx"
)

type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // the outer Store owns the connection

// Ping is a no-op, the transaction already holds a live connection.
func (t *txStore) Ping(context.Context) error { return nil }

func (t *txStore) WithTx(context.Context, func(tx store.Tx) error) error {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil } // applied before any tx is opened

func (t *txStore) Clients() store.Clients       { return &clientsRepo{q: t.tx} }
func (t *txStore) Users() store.Users           { return &usersRepo{q: t.tx} }
func (t *txStore) JwtConfigs() store.JwtConfigs { return &jwtConfigsRepo{q: t.tx} }
func (t *txStore) AuthorizationCodes() store.AuthorizationCodeStore {
	return &authorizationCodesRepo{q: t.tx, now: time.Now}
}
func (t *txStore) Approvals() store.ApprovalStore {
	return &approvalsRepo{q: t.tx, now: time.Now}
}
