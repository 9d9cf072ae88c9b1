package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cast"
)

type usersRepo struct {
	q sqlx.ExtContext
}

type userRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Email        sql.NullString `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Authorities  string         `db:"authorities"`
	Claims       string         `db:"claims"`
	Disabled     bool           `db:"disabled"`
	Locked       bool           `db:"locked"`
	CreatedAt    int64          `db:"created_at"`
	UpdatedAt    int64          `db:"updated_at"`
}

const userColumns = `id, username, email, password_hash, authorities, claims, disabled, locked, created_at, updated_at`

// LoadByType resolves principal by username, email or id. Accounts are
// global, clientID does not narrow the lookup.
func (r *usersRepo) LoadByType(ctx context.Context, principal, principalType, _ string) (domain.UserDetails, error) {
	var column string
	switch principalType {
	case "", domain.PrincipalUsername:
		column = "username"
	case domain.PrincipalEmail:
		column = "email"
		principal = strings.ToLower(principal)
	case domain.PrincipalID:
		column = "id"
	default:
		return domain.UserDetails{}, domain.Newf(domain.KindInvalidRequest, "unsupported principal type %q", principalType)
	}
	return r.loadBy(ctx, column, principal)
}

// LoadByParameter resolves the principal parameter as a username, falling
// back to email when it looks like an address.
func (r *usersRepo) LoadByParameter(ctx context.Context, param domain.RequestParameter, clientID string) (domain.UserDetails, error) {
	principal := param.Principal()
	if principal == "" {
		return domain.UserDetails{}, domain.New(domain.KindUnknownAccount, "no principal supplied")
	}

	u, err := r.LoadByType(ctx, principal, domain.PrincipalUsername, clientID)
	if err == nil || !errors.Is(err, domain.ErrUnknownAccount) || !strings.Contains(principal, "@") {
		return u, err
	}
	return r.LoadByType(ctx, principal, domain.PrincipalEmail, clientID)
}

func (r *usersRepo) LoadByID(ctx context.Context, id string) (domain.UserDetails, error) {
	return r.loadBy(ctx, "id", id)
}

// FromToken resolves a linked upstream identity by (iss, sub), then by a
// verified email claim.
func (r *usersRepo) FromToken(ctx context.Context, _, _ string, userInfo map[string]any) (domain.UserDetails, error) {
	issuer := cast.ToString(userInfo["iss"])
	subject := cast.ToString(userInfo["sub"])

	if issuer != "" && subject != "" {
		var userID string
		err := sqlx.GetContext(ctx, r.q, &userID,
			`SELECT user_id FROM user_identities WHERE issuer = ? AND subject = ?`, issuer, subject)
		switch {
		case err == nil:
			return r.LoadByID(ctx, userID)
		case !errors.Is(err, sql.ErrNoRows):
			return domain.UserDetails{}, domain.Wrap(domain.KindInternal, err, "lookup identity")
		}
	}

	if email := cast.ToString(userInfo["email"]); email != "" && emailVerified(userInfo["email_verified"]) {
		return r.LoadByType(ctx, email, domain.PrincipalEmail, "")
	}
	return domain.UserDetails{}, domain.New(domain.KindUnknownAccount, "no account linked to upstream identity")
}

// emailVerified accepts a JSON true, or the string "true" some providers
// send instead. Numbers and other truthy strings do not count.
func emailVerified(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	default:
		return false
	}
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.UserDetails) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	claims := u.Claims
	if claims == nil {
		claims = map[string]any{}
	}
	rawClaims, err := json.Marshal(claims)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.Principal,
		mapStringNull(strings.ToLower(cast.ToString(claims["email"]))),
		u.Credentials,
		joinFields(u.Authorities),
		string(rawClaims),
		u.Disabled,
		u.Locked,
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) LinkIdentity(ctx context.Context, issuer, subject, userID string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO user_identities (issuer, subject, user_id) VALUES (?, ?, ?)`,
		issuer, subject, userID)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := sqlx.GetContext(ctx, r.q, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return false, err
	}
	return count == 0, nil
}

// loadBy selects one user by a trusted column name.
func (r *usersRepo) loadBy(ctx context.Context, column, value string) (domain.UserDetails, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserDetails{}, domain.Wrap(domain.KindUnknownAccount, store.ErrNotFound, "account "+value+" not found")
	}
	if err != nil {
		return domain.UserDetails{}, domain.Wrap(domain.KindInternal, err, "load account")
	}
	return mapUser(row)
}

func mapUser(row userRow) (domain.UserDetails, error) {
	claims := map[string]any{}
	if row.Claims != "" {
		if err := json.Unmarshal([]byte(row.Claims), &claims); err != nil {
			return domain.UserDetails{}, domain.Wrap(domain.KindInternal, err, "decode claims for "+row.ID)
		}
	}
	if row.Email.Valid {
		if _, ok := claims["email"]; !ok {
			claims["email"] = row.Email.String
		}
	}

	return domain.UserDetails{
		ID:          row.ID,
		Principal:   row.Username,
		Credentials: row.PasswordHash,
		Authorities: splitFields(row.Authorities),
		Claims:      claims,
		Disabled:    row.Disabled,
		Locked:      row.Locked,
		CreatedAt:   fromMillis(row.CreatedAt),
		UpdatedAt:   fromMillis(row.UpdatedAt),
	}, nil
}
