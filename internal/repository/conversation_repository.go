package repository

import (
	"context"
	"database/sql"
)

// ConversationRepo ensures customer/pharmacy threads exist.  Messaging
// itself lives elsewhere.
type ConversationRepo struct{ db *sql.DB }

func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{db: db} }

// Ensure creates the thread unless the unique (pharmacy_id, account_id)
// pair already exists.
func (r *ConversationRepo) Ensure(ctx context.Context, pharmacyID, accountID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO conversations (pharmacy_id, account_id) VALUES (?,?)", pharmacyID, accountID)
	return err
}
