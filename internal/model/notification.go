package model

import "time"

// Notification types emitted by the workflows.
const (
	NotifyApplicationApproved = "PARTNER_APPLICATION_APPROVED"
	NotifyApplicationRejected = "PARTNER_APPLICATION_REJECTED"
	NotifyOfferFrozen         = "OFFER_FROZEN"
	NotifyOfferDeleted        = "OFFER_DELETED"
	NotifyUnfreezeRequested   = "OFFER_UNFREEZE_REQUESTED"
	NotifyReservationNew      = "RESERVATION_SUBMITTED"
	NotifyReservationOK       = "RESERVATION_CONFIRMED"
	NotifyReservationRejected = "RESERVATION_REJECTED"
)

// Notification is a fire-and-forget record addressed to one account.
type Notification struct {
	ID        uint64     // notifications.id
	AccountID uint64     // notifications.account_id
	Type      string     // notifications.type
	Title     string     // notifications.title
	Body      string     // notifications.body
	RefID     *string    // notifications.ref_id (nullable)
	ReadAt    *time.Time // notifications.read_at (nullable)
	CreatedAt time.Time  // notifications.created_at
}
