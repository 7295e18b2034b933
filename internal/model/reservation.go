package model

import "time"

// ReservationStatus values stored in reservations.status.
type ReservationStatus string

const (
	ReservationSubmitted ReservationStatus = "SUBMITTED"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationRejected  ReservationStatus = "REJECTED"
)

// PaymentStatus values stored in payments.status.
type PaymentStatus string

const (
	PaymentAwaiting     PaymentStatus = "AWAITING_PAYMENT"
	PaymentUserReported PaymentStatus = "USER_REPORTED_PAID"
)

// Payment method codes accepted for deposits.
const (
	PaymentWhish      = "WHISH"
	PaymentOMT        = "OMT"
	PaymentCreditCard = "CREDIT_CARD"
)

// ValidPaymentMethod reports whether code is a known deposit method.
func ValidPaymentMethod(code string) bool {
	switch code {
	case PaymentWhish, PaymentOMT, PaymentCreditCard:
		return true
	}
	return false
}

// Reservation records a customer's deposit booking against one pharmacy.
//
// Fields:
//  ID                – primary key identifier.
//  AccountID         – customer who made the reservation.
//  PharmacyID        – pharmacy that will fulfil it.
//  Status            – SUBMITTED, CONFIRMED or REJECTED.
//  TotalDepositCents – sum of item deposits in minor units.
//  Currency          – currency of the deposit.
//  CustomerPhone     – phone captured at creation time.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Reservation struct {
	ID                uint64            // reservations.id
	AccountID         uint64            // reservations.account_id
	PharmacyID        uint64            // reservations.pharmacy_id
	Status            ReservationStatus // reservations.status
	TotalDepositCents int64             // reservations.total_deposit_cents
	Currency          string            // reservations.currency
	CustomerPhone     string            // reservations.customer_phone
	CreatedAt         time.Time         // reservations.created_at
	UpdatedAt         time.Time         // reservations.updated_at
	Items             []ReservationItem
	Payment           *Payment
}

// ReservationItem is immutable once created.
type ReservationItem struct {
	ID               uint64 // reservation_items.id
	ReservationID    uint64 // reservation_items.reservation_id
	OfferID          uint64 // reservation_items.offer_id
	Quantity         int    // reservation_items.quantity
	UnitDepositCents int64  // reservation_items.unit_deposit_cents
}

// Payment is created 1:1 with the reservation.
type Payment struct {
	ID            uint64        // payments.id
	ReservationID uint64        // payments.reservation_id
	Provider      string        // payments.provider (method code)
	Status        PaymentStatus // payments.status
	AmountCents   int64         // payments.amount_cents
	Currency      string        // payments.currency
	Instruction   string        // payments.instruction
	ProofURL      *string       // payment_proofs.value (joined, nullable)
	CreatedAt     time.Time     // payments.created_at
}

// StatusEvent is one entry of the reservation status log.
type StatusEvent struct {
	ReservationID uint64            // reservation_status_events.reservation_id
	Status        ReservationStatus // reservation_status_events.status
	Note          *string           // reservation_status_events.note
	ActorID       uint64            // reservation_status_events.actor_account_id
	CreatedAt     time.Time         // reservation_status_events.created_at
}

// PaymentOption is a pharmacy's configuration for one global method.
type PaymentOption struct {
	Code         string  // payment_methods.code
	MethodActive bool    // payment_methods.is_active
	Enabled      bool    // pharmacy_payment_methods.is_enabled
	PayTo        *string // pharmacy_payment_methods.pay_to_identifier
}

// Available reports whether customers may pay with this option.
func (p PaymentOption) Available() bool { return p.MethodActive && p.Enabled }
