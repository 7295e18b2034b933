package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/database"
	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/queue"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

// ModerationService applies the offer moderation state machine and owns the
// single visibility decision for offer reads.
type ModerationService struct {
	offers *repository.OfferRepo
	access *Access
	outbox *queue.Outbox
	log    *zap.Logger
	now    func() time.Time
}

func NewModerationService(offers *repository.OfferRepo, access *Access, outbox *queue.Outbox, log *zap.Logger) *ModerationService {
	return &ModerationService{offers: offers, access: access, outbox: outbox, log: log, now: time.Now}
}

func moderationErr(err error) error {
	switch {
	case errors.Is(err, model.ErrReasonRequired):
		return ErrReasonRequired
	case errors.Is(err, model.ErrAlreadyFrozen):
		return ErrAlreadyFrozen
	case errors.Is(err, model.ErrNotFrozen):
		return ErrNotFrozen
	case errors.Is(err, model.ErrAlreadyDeleted):
		return ErrAlreadyDeleted
	case errors.Is(err, model.ErrNotDeleted):
		return ErrNotDeleted
	case errors.Is(err, model.ErrOfferDeleted):
		return ErrOfferDeleted
	}
	return err
}

type transition func(m model.Moderation, actor uint64, at time.Time) (model.Moderation, error)

// apply locks the offer, runs step on its moderation state and saves the
// result.  after runs in the same transaction for outbox writes.
func (s *ModerationService) apply(ctx context.Context, offerID uint64, actor *model.Identity, step transition,
	after func(tx *sql.Tx, o *model.Offer) error) (*model.Offer, error) {
	var out *model.Offer
	err := database.InTx(ctx, s.offers.DB(), func(tx *sql.Tx) error {
		o, err := s.offers.LockTx(ctx, tx, offerID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		next, err := step(o.Moderation, actor.AccountID, s.now().UTC())
		if err != nil {
			return moderationErr(err)
		}
		if err := s.offers.SaveModerationTx(ctx, tx, o.ID, next); err != nil {
			return err
		}
		o.Moderation = next
		if after != nil {
			if err := after(tx, o); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("offer moderated",
		zap.Uint64("offer_id", offerID), zap.String("state", string(out.Moderation.State())),
		zap.Uint64("actor_id", actor.AccountID))
	return out, nil
}

// notifyHolders fans a notice out to everyone with access to the offer's
// pharmacy.
func (s *ModerationService) notifyHolders(ctx context.Context, notifyType, title, verb string) func(tx *sql.Tx, o *model.Offer) error {
	return func(tx *sql.Tx, o *model.Offer) error {
		ids, err := s.access.AccessHoldersTx(ctx, tx, o.PharmacyID)
		if err != nil {
			return fmt.Errorf("list access holders: %w", err)
		}
		reason := ""
		if m := o.Moderation.DeleteMark(); m != nil && notifyType == model.NotifyOfferDeleted {
			reason = m.Reason
		} else if m := o.Moderation.FreezeMark(); m != nil {
			reason = m.Reason
		}
		return s.outbox.NotifyTx(ctx, tx, ids, queue.Notice{
			Type:  notifyType,
			Title: title,
			Body:  fmt.Sprintf("Your offer %q was %s. Reason: %s", o.ProductName, verb, reason),
			RefID: fmt.Sprint(o.ID),
		})
	}
}

// Freeze hides an ACTIVE offer and tells the pharmacy why.
func (s *ModerationService) Freeze(ctx context.Context, offerID uint64, reason string, actor *model.Identity) (*model.Offer, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	return s.apply(ctx, offerID, actor,
		func(m model.Moderation, by uint64, at time.Time) (model.Moderation, error) { return m.Freeze(reason, by, at) },
		s.notifyHolders(ctx, model.NotifyOfferFrozen, "Offer frozen", "frozen by a moderator"))
}

// Unfreeze returns a FROZEN offer to ACTIVE.
func (s *ModerationService) Unfreeze(ctx context.Context, offerID uint64, actor *model.Identity) (*model.Offer, error) {
	return s.apply(ctx, offerID, actor,
		func(m model.Moderation, _ uint64, _ time.Time) (model.Moderation, error) { return m.Unfreeze() }, nil)
}

// Delete soft-deletes an offer and tells the pharmacy why.
func (s *ModerationService) Delete(ctx context.Context, offerID uint64, reason string, actor *model.Identity) (*model.Offer, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	return s.apply(ctx, offerID, actor,
		func(m model.Moderation, by uint64, at time.Time) (model.Moderation, error) { return m.Delete(reason, by, at) },
		s.notifyHolders(ctx, model.NotifyOfferDeleted, "Offer removed", "removed by an administrator"))
}

// Restore undoes a delete.
func (s *ModerationService) Restore(ctx context.Context, offerID uint64, actor *model.Identity) (*model.Offer, error) {
	return s.apply(ctx, offerID, actor,
		func(m model.Moderation, _ uint64, _ time.Time) (model.Moderation, error) { return m.Restore() }, nil)
}

// RequestUnfreeze lets a pharmacy ask the administrators to lift a freeze.
// It changes no state.
func (s *ModerationService) RequestUnfreeze(ctx context.Context, offerID uint64, actor *model.Identity, message string) error {
	o, err := s.offers.Get(ctx, offerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	ok, err := s.access.HasPharmacyAccess(ctx, actor.AccountID, o.PharmacyID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	if o.Moderation.State() != model.OfferFrozen {
		return ErrNotFrozen
	}
	admins, err := s.access.PrivilegedAccountIDs(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	body := fmt.Sprintf("Pharmacy %q asks to unfreeze offer %q.", o.PharmacyName, o.ProductName)
	if m := strings.TrimSpace(message); m != "" {
		body += " Message: " + m
	}
	return database.InTx(ctx, s.offers.DB(), func(tx *sql.Tx) error {
		return s.outbox.NotifyTx(ctx, tx, admins, queue.Notice{
			Type:  model.NotifyUnfreezeRequested,
			Title: "Unfreeze requested",
			Body:  body,
			RefID: fmt.Sprint(o.ID),
		})
	})
}

// OfferView is an offer as shown to one viewer.  Moderation metadata is
// only present when the viewer was allowed to see a hidden offer.
type OfferView struct {
	ID              uint64     `json:"id"`
	PharmacyID      uint64     `json:"pharmacyId"`
	PharmacyName    string     `json:"pharmacyName"`
	ProductName     string     `json:"productName"`
	BookingPrice    string     `json:"bookingPrice"`
	Currency        string     `json:"currency"`
	StockQty        *int64     `json:"stockQty"`
	State           string     `json:"state"`
	IsFrozen        bool       `json:"isFrozen"`
	FrozenReason    *string    `json:"frozenReason,omitempty"`
	FrozenBy        *uint64    `json:"frozenBy,omitempty"`
	FrozenAt        *time.Time `json:"frozenAt,omitempty"`
	IsDeleted       bool       `json:"isDeleted"`
	DeletedReason   *string    `json:"deletedReason,omitempty"`
	DeletedBy       *uint64    `json:"deletedBy,omitempty"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty"`
	PharmacyActive  bool       `json:"pharmacyActive"`
	IsPartner       bool       `json:"isPartner"`
	IsPharmacyOwner bool       `json:"isPharmacyOwner"`
}

// NewOfferView flattens an offer for output.
func NewOfferView(o *model.Offer) *OfferView {
	v := &OfferView{
		ID:             o.ID,
		PharmacyID:     o.PharmacyID,
		PharmacyName:   o.PharmacyName,
		ProductName:    o.ProductName,
		BookingPrice:   model.FormatCents(o.BookingPriceCents),
		Currency:       o.Currency,
		StockQty:       o.StockQty,
		State:          string(o.Moderation.State()),
		PharmacyActive: o.PharmacyActive,
	}
	if m := o.Moderation.FreezeMark(); m != nil {
		reason, by, at := m.Reason, m.ActorID, m.At
		v.IsFrozen, v.FrozenReason, v.FrozenBy, v.FrozenAt = true, &reason, &by, &at
	}
	if m := o.Moderation.DeleteMark(); m != nil {
		reason, by, at := m.Reason, m.ActorID, m.At
		v.IsDeleted, v.DeletedReason, v.DeletedBy, v.DeletedAt = true, &reason, &by, &at
	}
	return v
}

// visible is the one place that decides whether viewer may see an offer.
// Hidden offers are reported as ErrNotFound so their existence does not
// leak.
func (s *ModerationService) visible(ctx context.Context, offerID uint64, viewer *model.Identity) (*model.Offer, error) {
	o, err := s.offers.Get(ctx, offerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !o.Hidden() {
		return o, nil
	}
	ok, err := s.access.CanViewHidden(ctx, viewer, o.PharmacyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

// View returns the offer as seen by viewer, who may be nil.
func (s *ModerationService) View(ctx context.Context, offerID uint64, viewer *model.Identity) (*OfferView, error) {
	o, err := s.visible(ctx, offerID, viewer)
	if err != nil {
		return nil, err
	}
	v := NewOfferView(o)
	if viewer != nil {
		level, ok, err := s.access.Membership(ctx, viewer.AccountID, o.PharmacyID)
		if err != nil {
			return nil, err
		}
		v.IsPartner = ok
		v.IsPharmacyOwner = ok && level == model.AccessOwner
	}
	return v, nil
}

// ContentInput is an owner/staff edit.  A JSON null stockQty is expressed
// with ClearStock.
type ContentInput struct {
	BookingPrice *float64
	StockQty     *int64
	ClearStock   bool
	Currency     *string
}

// EditContent lets any access holder of the offer's pharmacy change price,
// stock and currency.  Moderation fields are not touched.
func (s *ModerationService) EditContent(ctx context.Context, offerID uint64, actor *model.Identity, in ContentInput) (*OfferView, error) {
	var patch model.OfferContentPatch
	if in.BookingPrice != nil {
		cents := model.CentsFromAmount(*in.BookingPrice)
		if cents <= 0 {
			return nil, Validation("INVALID_PRICE")
		}
		patch.BookingPriceCents = &cents
	}
	if in.ClearStock {
		patch.ClearStock = true
	} else if in.StockQty != nil {
		if *in.StockQty < 1 {
			return nil, Validation("INVALID_STOCK")
		}
		patch.StockQty = in.StockQty
	}
	if in.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if cur != "USD" && cur != "LBP" {
			return nil, Validation("INVALID_CURRENCY")
		}
		patch.Currency = &cur
	}

	o, err := s.offers.Get(ctx, offerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.access.HasPharmacyAccess(ctx, actor.AccountID, o.PharmacyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if o.Hidden() && !s.access.IsModerator(actor) {
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}
	if err := s.offers.UpdateContent(ctx, o.ID, patch); err != nil {
		return nil, err
	}
	return s.View(ctx, o.ID, actor)
}
