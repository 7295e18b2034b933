package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

// NotificationRepo is the store behind the notification sink.
type NotificationRepo struct{ db *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// InsertIgnore writes one notification.  A redelivered outbox event hits
// the (outbox_id, account_id) key and is silently skipped.
func (r *NotificationRepo) InsertIgnore(ctx context.Context, outboxID uint64, n model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO notifications (outbox_id, account_id, type, title, body, ref_id) VALUES (?,?,?,?,?,?)",
		outboxID, n.AccountID, n.Type, n.Title, n.Body, n.RefID)
	return err
}

// ListByAccount returns the newest notifications of an account.
func (r *NotificationRepo) ListByAccount(ctx context.Context, accountID uint64, limit int) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, type, title, body, ref_id, read_at, created_at FROM notifications
		 WHERE account_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Notification
	for rows.Next() {
		var (
			n      model.Notification
			ref    sql.NullString
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Type, &n.Title, &n.Body, &ref, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.RefID = strPtr(ref)
		n.ReadAt = timePtr(readAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead sets read_at once.  It returns sql.ErrNoRows when the
// notification does not belong to the account.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, accountID uint64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET read_at=? WHERE id=? AND account_id=? AND read_at IS NULL", at, id, accountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var count int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE id=? AND account_id=?", id, accountID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return sql.ErrNoRows
	}
	return nil
}
