package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

// Notice is the content of a notification fanned out to several accounts.
type Notice struct {
	Type  string
	Title string
	Body  string
	RefID string
}

// Outbox appends side effects to the caller's transaction.  Nothing is
// delivered until the transaction commits and the relay picks the row up.
type Outbox struct {
	repo *repository.OutboxRepo
	now  func() time.Time
}

func NewOutbox(repo *repository.OutboxRepo) *Outbox {
	return &Outbox{repo: repo, now: time.Now}
}

// NotifyTx fans n out to every distinct recipient.  An empty recipient list
// writes nothing.
func (o *Outbox) NotifyTx(ctx context.Context, tx *sql.Tx, recipients []uint64, n Notice) error {
	seen := make(map[uint64]struct{}, len(recipients))
	msgs := make([]NotificationMessage, 0, len(recipients))
	var ref *string
	if n.RefID != "" {
		r := n.RefID
		ref = &r
	}
	for _, id := range recipients {
		if _, dup := seen[id]; dup || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		msgs = append(msgs, NotificationMessage{AccountID: id, Type: n.Type, Title: n.Title, Body: n.Body, RefID: ref})
	}
	if len(msgs) == 0 {
		return nil
	}
	return o.enqueueTx(ctx, tx, Event{Kind: KindNotify, Notifications: msgs})
}

// EnsureConversationTx schedules creation of the customer/pharmacy thread.
func (o *Outbox) EnsureConversationTx(ctx context.Context, tx *sql.Tx, pharmacyID, accountID uint64) error {
	return o.enqueueTx(ctx, tx, Event{
		Kind:         KindConversationEnsure,
		Conversation: &ConversationMessage{PharmacyID: pharmacyID, AccountID: accountID},
	})
}

func (o *Outbox) enqueueTx(ctx context.Context, tx *sql.Tx, ev Event) error {
	ev.CreatedAt = o.now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	if _, err := o.repo.EnqueueTx(ctx, tx, ev.Kind, body); err != nil {
		return fmt.Errorf("enqueue %s event: %w", ev.Kind, err)
	}
	return nil
}
