package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/database"
	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/queue"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

const (
	maxQuantity      = 100
	reservationLimit = 50
	createdNote      = "Created with payment"
)

// ReservationService creates deposit reservations and lets the pharmacy
// confirm or reject them.
type ReservationService struct {
	reservations *repository.ReservationRepo
	offers       *repository.OfferRepo
	pharmacies   *repository.PharmacyRepo
	accounts     *repository.AccountRepo
	access       *Access
	outbox       *queue.Outbox
	log          *zap.Logger
	now          func() time.Time
}

func NewReservationService(
	reservations *repository.ReservationRepo,
	offers *repository.OfferRepo,
	pharmacies *repository.PharmacyRepo,
	accounts *repository.AccountRepo,
	access *Access,
	outbox *queue.Outbox,
	log *zap.Logger,
) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		offers:       offers,
		pharmacies:   pharmacies,
		accounts:     accounts,
		access:       access,
		outbox:       outbox,
		log:          log,
		now:          time.Now,
	}
}

// CreateReservationInput is the customer's booking request.
type CreateReservationInput struct {
	OfferID           uint64  `json:"offerId"`
	Quantity          int     `json:"quantity"`
	PaymentMethodCode string  `json:"paymentMethodCode"`
	ProofURL          *string `json:"paymentProofUrl"`
	CustomerPhone     *string `json:"customerPhone"`
}

// CreatedReservation is returned to the customer after booking.
type CreatedReservation struct {
	ID            uint64 `json:"id"`
	Status        string `json:"status"`
	TotalDeposit  string `json:"totalDeposit"`
	Currency      string `json:"currency"`
	PaymentStatus string `json:"paymentStatus"`
	Instruction   string `json:"paymentInstruction"`
}

func validProofURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// paymentInstruction tells the customer where to send the deposit.
func paymentInstruction(opt model.PaymentOption, amount int64, currency string) string {
	if opt.PayTo != nil && strings.TrimSpace(*opt.PayTo) != "" {
		return fmt.Sprintf("Send %s %s to %s", model.FormatCents(amount), currency, strings.TrimSpace(*opt.PayTo))
	}
	return fmt.Sprintf("Pay %s %s (%s)", model.FormatCents(amount), currency, opt.Code)
}

// Create books quantity units of an offer against a deposit.  Everything
// the reservation consists of is written in one transaction together with
// the outbox events that notify the pharmacy and open the conversation.
func (s *ReservationService) Create(ctx context.Context, customer *model.Identity, in CreateReservationInput) (*CreatedReservation, error) {
	if in.Quantity < 1 || in.Quantity > maxQuantity {
		return nil, ErrInvalidQuantity
	}
	code := strings.ToUpper(strings.TrimSpace(in.PaymentMethodCode))
	if !model.ValidPaymentMethod(code) {
		return nil, ErrInvalidPaymentMethod
	}
	proof := optional(in.ProofURL)
	if proof != nil && !validProofURL(*proof) {
		return nil, ErrInvalidProofURL
	}

	offer, err := s.offers.Get(ctx, in.OfferID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	if offer.Hidden() {
		return nil, ErrOfferNotFound
	}

	opt, err := s.pharmacies.PaymentOption(ctx, offer.PharmacyID, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentMethodNotAvailable
	}
	if err != nil {
		return nil, err
	}
	if !opt.Available() {
		return nil, ErrPaymentMethodNotAvailable
	}

	if err := bookable(offer, in.Quantity); err != nil {
		return nil, err
	}

	phone, err := s.resolvePhone(ctx, customer.AccountID, in.CustomerPhone)
	if err != nil {
		return nil, err
	}

	var (
		res   *model.Reservation
		pay   *model.Payment
		total int64
	)
	err = database.InTx(ctx, s.reservations.DB(), func(tx *sql.Tx) error {
		// the offer may have been frozen, deleted or drawn down since the read above
		locked, err := s.offers.LockTx(ctx, tx, in.OfferID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOfferNotFound
		}
		if err != nil {
			return err
		}
		if err := bookable(locked, in.Quantity); err != nil {
			return err
		}
		offer = locked

		unit := model.UnitDepositCents(offer.BookingPriceCents)
		total = model.DepositCents(offer.BookingPriceCents, in.Quantity)
		res = &model.Reservation{
			AccountID:         customer.AccountID,
			PharmacyID:        offer.PharmacyID,
			Status:            model.ReservationSubmitted,
			TotalDepositCents: total,
			Currency:          offer.Currency,
			CustomerPhone:     phone,
		}
		pay = &model.Payment{
			Provider:    code,
			Status:      model.PaymentAwaiting,
			AmountCents: total,
			Currency:    offer.Currency,
			Instruction: paymentInstruction(opt, total, offer.Currency),
		}
		if proof != nil {
			pay.Status = model.PaymentUserReported
		}

		if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		item := &model.ReservationItem{
			ReservationID:    res.ID,
			OfferID:          offer.ID,
			Quantity:         in.Quantity,
			UnitDepositCents: unit,
		}
		if err := s.reservations.CreateItemTx(ctx, tx, item); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		pay.ReservationID = res.ID
		if err := s.reservations.CreatePaymentTx(ctx, tx, pay); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if proof != nil {
			if err := s.reservations.CreateProofTx(ctx, tx, pay.ID, *proof, customer.AccountID); err != nil {
				return fmt.Errorf("create proof: %w", err)
			}
		}
		note := createdNote
		if err := s.reservations.AppendEventTx(ctx, tx, model.StatusEvent{
			ReservationID: res.ID,
			Status:        model.ReservationSubmitted,
			Note:          &note,
			ActorID:       customer.AccountID,
			CreatedAt:     s.now().UTC(),
		}); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		holders, err := s.access.AccessHoldersTx(ctx, tx, offer.PharmacyID)
		if err != nil {
			return fmt.Errorf("list access holders: %w", err)
		}
		if err := s.outbox.NotifyTx(ctx, tx, holders, queue.Notice{
			Type:  model.NotifyReservationNew,
			Title: "New reservation",
			Body: fmt.Sprintf("Reservation for %d item(s), %s %s. Payment: %s.",
				in.Quantity, model.FormatCents(total), offer.Currency, code),
			RefID: fmt.Sprint(res.ID),
		}); err != nil {
			return err
		}
		return s.outbox.EnsureConversationTx(ctx, tx, offer.PharmacyID, customer.AccountID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation created",
		zap.Uint64("reservation_id", res.ID), zap.Uint64("offer_id", offer.ID),
		zap.Uint64("account_id", customer.AccountID), zap.Int64("deposit_cents", total))
	return &CreatedReservation{
		ID:            res.ID,
		Status:        string(res.Status),
		TotalDeposit:  model.FormatCents(total),
		Currency:      res.Currency,
		PaymentStatus: string(pay.Status),
		Instruction:   pay.Instruction,
	}, nil
}

// bookable rejects hidden offers and quantities above tracked stock.
func bookable(o *model.Offer, quantity int) error {
	if o.Hidden() {
		return ErrOfferNotFound
	}
	if o.StockQty != nil && int64(quantity) > *o.StockQty {
		return ErrQuantityExceedsStock
	}
	return nil
}

// resolvePhone prefers the phone given with the request and falls back to
// the one on the account.
func (s *ReservationService) resolvePhone(ctx context.Context, accountID uint64, given *string) (string, error) {
	if p := optional(given); p != nil {
		return *p, nil
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPhoneRequired
	}
	if err != nil {
		return "", err
	}
	if p := optional(acct.Phone); p != nil {
		return *p, nil
	}
	return "", ErrPhoneRequired
}

// Confirm accepts a SUBMITTED reservation on behalf of its pharmacy.
func (s *ReservationService) Confirm(ctx context.Context, reservationID uint64, actor *model.Identity) error {
	return s.decide(ctx, reservationID, actor, model.ReservationConfirmed, nil)
}

// Reject declines a SUBMITTED reservation.  The reason goes to the status
// log and to the customer.
func (s *ReservationService) Reject(ctx context.Context, reservationID uint64, actor *model.Identity, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	return s.decide(ctx, reservationID, actor, model.ReservationRejected, &reason)
}

// decide runs the guarded status update.  An unknown id, a reservation that
// already left SUBMITTED and a pharmacy the actor has no access to all
// report ErrNotFound.
func (s *ReservationService) decide(ctx context.Context, id uint64, actor *model.Identity, to model.ReservationStatus, note *string) error {
	err := database.InTx(ctx, s.reservations.DB(), func(tx *sql.Tx) error {
		ok, err := s.reservations.TransitionTx(ctx, tx, id, actor.AccountID, to)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		customerID, _, err := s.reservations.PartiesTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.reservations.AppendEventTx(ctx, tx, model.StatusEvent{
			ReservationID: id,
			Status:        to,
			Note:          note,
			ActorID:       actor.AccountID,
			CreatedAt:     s.now().UTC(),
		}); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		n := queue.Notice{
			Type:  model.NotifyReservationOK,
			Title: "Reservation confirmed",
			Body:  fmt.Sprintf("Your reservation #%d was confirmed by the pharmacy.", id),
			RefID: fmt.Sprint(id),
		}
		if to == model.ReservationRejected {
			n.Type = model.NotifyReservationRejected
			n.Title = "Reservation rejected"
			n.Body = fmt.Sprintf("Your reservation #%d was rejected. Reason: %s", id, *note)
		}
		return s.outbox.NotifyTx(ctx, tx, []uint64{customerID}, n)
	})
	if err != nil {
		return err
	}
	s.log.Info("reservation decided",
		zap.Uint64("reservation_id", id), zap.String("status", string(to)), zap.Uint64("actor_id", actor.AccountID))
	return nil
}

// ListMine returns the caller's newest reservations.
func (s *ReservationService) ListMine(ctx context.Context, accountID uint64) ([]model.Reservation, error) {
	return s.reservations.ListByAccount(ctx, accountID, reservationLimit)
}

// ListForPharmacy returns a pharmacy's newest reservations to its access
// holders.
func (s *ReservationService) ListForPharmacy(ctx context.Context, pharmacyID uint64, actor *model.Identity) ([]model.Reservation, error) {
	ok, err := s.access.HasPharmacyAccess(ctx, actor.AccountID, pharmacyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return s.reservations.ListByPharmacy(ctx, pharmacyID, reservationLimit)
}
