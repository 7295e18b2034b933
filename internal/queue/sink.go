package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

// Sink is the delivery end of the notification pipeline.  Every write is
// idempotent so a redelivered event leaves the store unchanged.
type Sink struct {
	notifications *repository.NotificationRepo
	conversations *repository.ConversationRepo
	log           *zap.Logger
}

func NewSink(n *repository.NotificationRepo, c *repository.ConversationRepo, log *zap.Logger) *Sink {
	return &Sink{notifications: n, conversations: c, log: log}
}

// Deliver applies one event.  A failure is returned so the caller can retry;
// already-written notifications are skipped on the retry.
func (s *Sink) Deliver(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case KindNotify:
		for _, m := range ev.Notifications {
			err := s.notifications.InsertIgnore(ctx, ev.ID, model.Notification{
				AccountID: m.AccountID,
				Type:      m.Type,
				Title:     m.Title,
				Body:      m.Body,
				RefID:     m.RefID,
			})
			if err != nil {
				return fmt.Errorf("notify account %d: %w", m.AccountID, err)
			}
		}
		s.log.Debug("notifications delivered", zap.Uint64("event_id", ev.ID), zap.Int("count", len(ev.Notifications)))
		return nil
	case KindConversationEnsure:
		if ev.Conversation == nil {
			return fmt.Errorf("conversation event %d without payload", ev.ID)
		}
		if err := s.conversations.Ensure(ctx, ev.Conversation.PharmacyID, ev.Conversation.AccountID); err != nil {
			return fmt.Errorf("ensure conversation: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown event kind %q", ev.Kind)
}
