package repository

import (
	"context"
	"database/sql"
	"time"
	"unicode/utf8"
)

// MaxOutboxAttempts stops the relay from retrying a poisoned row forever.
const MaxOutboxAttempts = 20

// maxLastError is the byte budget for outbox_events.last_error.
const maxLastError = 500

// OutboxRecord is a pending side effect written in the same transaction as
// the state change that caused it.
type OutboxRecord struct {
	ID        uint64    // outbox_events.id
	Kind      string    // outbox_events.kind
	Payload   []byte    // outbox_events.payload
	Attempts  int       // outbox_events.attempts
	CreatedAt time.Time // outbox_events.created_at
}

// OutboxRepo stores and drains outbox_events.
type OutboxRepo struct{ db *sql.DB }

func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

func (r *OutboxRepo) DB() *sql.DB { return r.db }

// EnqueueTx appends an event inside the caller's transaction.
func (r *OutboxRepo) EnqueueTx(ctx context.Context, tx *sql.Tx, kind string, payload []byte) (uint64, error) {
	res, err := tx.ExecContext(ctx, "INSERT INTO outbox_events (kind, payload) VALUES (?,?)", kind, payload)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ClaimTx locks up to limit undispatched rows.  SKIP LOCKED lets several
// relays drain the table without blocking each other.
func (r *OutboxRepo) ClaimTx(ctx context.Context, tx *sql.Tx, limit int) ([]OutboxRecord, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, kind, payload, attempts, created_at FROM outbox_events
		 WHERE dispatched_at IS NULL AND attempts < ?
		 ORDER BY id LIMIT ? FOR UPDATE SKIP LOCKED`, MaxOutboxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Payload, &rec.Attempts, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkDispatchedTx records a successful hand-off to the broker.
func (r *OutboxRepo) MarkDispatchedTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx, "UPDATE outbox_events SET dispatched_at=?, last_error=NULL WHERE id=?", at, id)
	return err
}

// MarkFailedTx bumps the attempt counter so the row is retried later.
func (r *OutboxRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64, cause string) error {
	_, err := tx.ExecContext(ctx, "UPDATE outbox_events SET attempts=attempts+1, last_error=? WHERE id=?",
		truncate(cause, maxLastError), id)
	return err
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
