// Package queue carries workflow side effects from the outbox table to the
// notification sink, either through RabbitMQ or in-process.
package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventsQueue is the durable RabbitMQ queue the relay publishes to.
const EventsQueue = "marketplace.events"

// Event kinds.
const (
	KindNotify             = "notify"
	KindConversationEnsure = "conversation.ensure"
)

// Event is one outbox row on the wire.  ID is the outbox id and doubles as
// the idempotency key on delivery.
type Event struct {
	ID            uint64                `json:"id"`
	Kind          string                `json:"kind"`
	Notifications []NotificationMessage `json:"notifications,omitempty"`
	Conversation  *ConversationMessage  `json:"conversation,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// NotificationMessage addresses one notification to one account.
type NotificationMessage struct {
	AccountID uint64  `json:"account_id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	RefID     *string `json:"ref_id,omitempty"`
}

// ConversationMessage asks the sink to make sure a customer/pharmacy thread
// exists.
type ConversationMessage struct {
	PharmacyID uint64 `json:"pharmacy_id"`
	AccountID  uint64 `json:"account_id"`
}

// DecodeEvent parses an event body and checks it is deliverable.
func DecodeEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal: %w", err)
	}
	switch ev.Kind {
	case KindNotify:
	case KindConversationEnsure:
		if ev.Conversation == nil {
			return Event{}, fmt.Errorf("conversation event %d without payload", ev.ID)
		}
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return ev, nil
}
