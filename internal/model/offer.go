package model

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OfferState is the moderation state of an offer.  DELETED hides the offer
// regardless of any freeze that preceded it.
type OfferState string

const (
	OfferActive  OfferState = "ACTIVE"
	OfferFrozen  OfferState = "FROZEN"
	OfferDeleted OfferState = "DELETED"
)

// Transition errors returned by Moderation.  The service layer maps them to
// wire codes.
var (
	ErrReasonRequired = errors.New("reason required")
	ErrAlreadyFrozen  = errors.New("already frozen")
	ErrNotFrozen      = errors.New("not frozen")
	ErrAlreadyDeleted = errors.New("already deleted")
	ErrNotDeleted     = errors.New("not deleted")
	ErrOfferDeleted   = errors.New("offer deleted")
)

// Mark records why, by whom and when a moderation flag was raised.
type Mark struct {
	Reason  string
	ActorID uint64
	At      time.Time
}

// Moderation is the hidden-state of an offer.  The zero value is ACTIVE.
// A FROZEN or DELETED state always carries its Mark; an offer deleted while
// frozen keeps the freeze Mark so restore can return it to FROZEN.
type Moderation struct {
	state OfferState
	mark  *Mark
	prior *Mark
}

// Active returns the ACTIVE moderation state.
func Active() Moderation { return Moderation{state: OfferActive} }

// State returns the current state.
func (m Moderation) State() OfferState {
	if m.state == "" {
		return OfferActive
	}
	return m.state
}

// Hidden reports whether the general public must not see the offer.
func (m Moderation) Hidden() bool { return m.State() != OfferActive }

// FreezeMark returns the freeze metadata when the offer is frozen, including
// a freeze that is shadowed by a later delete.
func (m Moderation) FreezeMark() *Mark {
	switch m.State() {
	case OfferFrozen:
		return m.mark
	case OfferDeleted:
		return m.prior
	}
	return nil
}

// DeleteMark returns the delete metadata when the offer is deleted.
func (m Moderation) DeleteMark() *Mark {
	if m.State() == OfferDeleted {
		return m.mark
	}
	return nil
}

// Freeze moves ACTIVE to FROZEN.
func (m Moderation) Freeze(reason string, actorID uint64, at time.Time) (Moderation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return m, ErrReasonRequired
	}
	switch m.State() {
	case OfferFrozen:
		return m, ErrAlreadyFrozen
	case OfferDeleted:
		return m, ErrOfferDeleted
	}
	return Moderation{state: OfferFrozen, mark: &Mark{Reason: reason, ActorID: actorID, At: at}}, nil
}

// Unfreeze moves FROZEN back to ACTIVE and drops the freeze metadata.
func (m Moderation) Unfreeze() (Moderation, error) {
	if m.State() != OfferFrozen {
		return m, ErrNotFrozen
	}
	return Active(), nil
}

// Delete soft-deletes the offer from ACTIVE or FROZEN.
func (m Moderation) Delete(reason string, actorID uint64, at time.Time) (Moderation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return m, ErrReasonRequired
	}
	if m.State() == OfferDeleted {
		return m, ErrAlreadyDeleted
	}
	next := Moderation{state: OfferDeleted, mark: &Mark{Reason: reason, ActorID: actorID, At: at}}
	if m.State() == OfferFrozen {
		next.prior = m.mark
	}
	return next, nil
}

// Restore undoes a delete, returning the offer to the state it had before.
func (m Moderation) Restore() (Moderation, error) {
	if m.State() != OfferDeleted {
		return m, ErrNotDeleted
	}
	if m.prior != nil {
		return Moderation{state: OfferFrozen, mark: m.prior}, nil
	}
	return Active(), nil
}

// ModerationRow is the column form of Moderation in the offers table.
type ModerationRow struct {
	State        string         // offers.state
	Reason       sql.NullString // offers.state_reason
	ActorID      sql.NullInt64  // offers.state_actor_id
	At           sql.NullTime   // offers.state_at
	PriorReason  sql.NullString // offers.prior_reason
	PriorActorID sql.NullInt64  // offers.prior_actor_id
	PriorAt      sql.NullTime   // offers.prior_at
}

// Row flattens m into its column form.  Cleared marks become NULLs so a
// flag is never left half-populated.
func (m Moderation) Row() ModerationRow {
	row := ModerationRow{State: string(m.State())}
	if m.mark != nil {
		row.Reason = sql.NullString{String: m.mark.Reason, Valid: true}
		row.ActorID = sql.NullInt64{Int64: int64(m.mark.ActorID), Valid: true}
		row.At = sql.NullTime{Time: m.mark.At, Valid: true}
	}
	if m.prior != nil {
		row.PriorReason = sql.NullString{String: m.prior.Reason, Valid: true}
		row.PriorActorID = sql.NullInt64{Int64: int64(m.prior.ActorID), Valid: true}
		row.PriorAt = sql.NullTime{Time: m.prior.At, Valid: true}
	}
	return row
}

// Moderation rebuilds the state from stored columns and rejects
// combinations the state machine can never produce.
func (r ModerationRow) Moderation() (Moderation, error) {
	state := OfferState(r.State)
	mark := markFrom(r.Reason, r.ActorID, r.At)
	prior := markFrom(r.PriorReason, r.PriorActorID, r.PriorAt)
	switch state {
	case OfferActive, "":
		if mark != nil || prior != nil {
			return Moderation{}, fmt.Errorf("active offer carries moderation metadata")
		}
		return Active(), nil
	case OfferFrozen:
		if mark == nil || prior != nil {
			return Moderation{}, fmt.Errorf("frozen offer with invalid metadata")
		}
		return Moderation{state: OfferFrozen, mark: mark}, nil
	case OfferDeleted:
		if mark == nil {
			return Moderation{}, fmt.Errorf("deleted offer without metadata")
		}
		return Moderation{state: OfferDeleted, mark: mark, prior: prior}, nil
	}
	return Moderation{}, fmt.Errorf("unknown offer state %q", r.State)
}

func markFrom(reason sql.NullString, actor sql.NullInt64, at sql.NullTime) *Mark {
	if !reason.Valid {
		return nil
	}
	return &Mark{Reason: reason.String, ActorID: uint64(actor.Int64), At: at.Time}
}

// Offer mirrors the `offers` table joined with its pharmacy.
type Offer struct {
	ID                uint64     // offers.id
	PharmacyID        uint64     // offers.pharmacy_id
	ProductName       string     // offers.product_name
	BookingPriceCents int64      // offers.booking_price_cents
	Currency          string     // offers.currency (USD | LBP)
	StockQty          *int64     // offers.stock_qty (nullable = untracked)
	Moderation        Moderation // offers.state + state_* / prior_*
	PharmacyActive    bool       // pharmacies.is_active (joined)
	PharmacyName      string     // pharmacies.name (joined)
	CreatedAt         time.Time  // offers.created_at
	UpdatedAt         time.Time  // offers.updated_at
}

// Hidden reports whether the offer is invisible to the general public.
func (o *Offer) Hidden() bool {
	return o.Moderation.Hidden() || !o.PharmacyActive
}

// OfferContentPatch carries owner-editable fields.  Nil fields are left
// untouched; ClearStock switches the offer to untracked stock.
type OfferContentPatch struct {
	BookingPriceCents *int64
	StockQty          *int64
	ClearStock        bool
	Currency          *string
}
