package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

// AccountRepo reads and writes accounts and their roles.
type AccountRepo struct{ db *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// DB exposes the pool so callers can open transactions spanning repos.
func (r *AccountRepo) DB() *sql.DB { return r.db }

// CreateTx inserts an account and returns its ID.  A taken email yields
// ErrDuplicate.
func (r *AccountRepo) CreateTx(ctx context.Context, tx *sql.Tx, email string, phone, name *string, hash string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := tx.ExecContext(ctx,
		"INSERT INTO accounts (email, phone, name, password_hash) VALUES (?,?,?,?)",
		email, phone, name, hash)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GrantRoleTx adds role to the account; granting twice is a no-op.
func (r *AccountRepo) GrantRoleTx(ctx context.Context, tx *sql.Tx, accountID uint64, role string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT IGNORE INTO account_roles (account_id, role) VALUES (?,?)", accountID, role)
	return err
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT id,email,phone,name,password_hash,created_at FROM accounts WHERE email=? LIMIT 1", email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (*model.Account, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT id,email,phone,name,password_hash,created_at FROM accounts WHERE id=? LIMIT 1", id))
}

func (r *AccountRepo) scanOne(row *sql.Row) (*model.Account, error) {
	var (
		a           model.Account
		phone, name sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Email, &phone, &name, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Phone = strPtr(phone)
	a.Name = strPtr(name)
	return &a, nil
}

// Roles lists the roles granted to an account.
func (r *AccountRepo) Roles(ctx context.Context, accountID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT role FROM account_roles WHERE account_id=? ORDER BY role", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// PrivilegedIDs returns accounts holding the ADMIN role or whose email is in
// emails.
func (r *AccountRepo) PrivilegedIDs(ctx context.Context, emails []string) ([]uint64, error) {
	q := "SELECT DISTINCT a.id FROM accounts a LEFT JOIN account_roles ar ON ar.account_id = a.id AND ar.role = 'ADMIN' WHERE ar.account_id IS NOT NULL"
	args := make([]any, 0, len(emails))
	if len(emails) > 0 {
		q += " OR a.email IN (" + placeholders(len(emails)) + ")"
		for _, e := range emails {
			args = append(args, e)
		}
	}
	q += " ORDER BY a.id"
	return queryIDs(ctx, r.db, q, args...)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
