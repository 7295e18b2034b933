package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

// AccessRepo answers capability questions from pharmacy_access.  It never
// writes.
type AccessRepo struct{ db *sql.DB }

func NewAccessRepo(db *sql.DB) *AccessRepo { return &AccessRepo{db: db} }

// Level returns the strongest access level the account holds on the
// pharmacy.  ok is false when it holds none.
func (r *AccessRepo) Level(ctx context.Context, accountID, pharmacyID uint64) (model.AccessLevel, bool, error) {
	var level string
	err := r.db.QueryRowContext(ctx,
		`SELECT pa.level FROM pharmacy_access pa
		 JOIN partner_users pu ON pu.id = pa.partner_user_id
		 WHERE pu.account_id=? AND pa.pharmacy_id=?
		 ORDER BY pa.level = 'OWNER' DESC LIMIT 1`, accountID, pharmacyID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.AccessLevel(level), true, nil
}

const holderIDsQuery = `SELECT DISTINCT pu.account_id FROM pharmacy_access pa
	JOIN partner_users pu ON pu.id = pa.partner_user_id
	WHERE pa.pharmacy_id=? ORDER BY pu.account_id`

// HolderIDs lists every distinct account holding any access on a pharmacy.
func (r *AccessRepo) HolderIDs(ctx context.Context, pharmacyID uint64) ([]uint64, error) {
	return queryIDs(ctx, r.db, holderIDsQuery, pharmacyID)
}

// HolderIDsTx is HolderIDs inside tx.
func (r *AccessRepo) HolderIDsTx(ctx context.Context, tx *sql.Tx, pharmacyID uint64) ([]uint64, error) {
	return queryIDs(ctx, tx, holderIDsQuery, pharmacyID)
}
