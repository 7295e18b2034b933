package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

// OfferRepo reads offers together with their pharmacy and persists
// moderation transitions computed by model.Moderation.
type OfferRepo struct{ db *sql.DB }

func NewOfferRepo(db *sql.DB) *OfferRepo { return &OfferRepo{db: db} }

func (r *OfferRepo) DB() *sql.DB { return r.db }

const offerSelect = `SELECT o.id, o.pharmacy_id, o.product_name, o.booking_price_cents, o.currency, o.stock_qty,
	o.state, o.state_reason, o.state_actor_id, o.state_at, o.prior_reason, o.prior_actor_id, o.prior_at,
	p.is_active, p.name, o.created_at, o.updated_at
	FROM offers o JOIN pharmacies p ON p.id = o.pharmacy_id`

func scanOffer(row rowScanner) (*model.Offer, error) {
	var (
		o     model.Offer
		stock sql.NullInt64
		mod   model.ModerationRow
	)
	if err := row.Scan(&o.ID, &o.PharmacyID, &o.ProductName, &o.BookingPriceCents, &o.Currency, &stock,
		&mod.State, &mod.Reason, &mod.ActorID, &mod.At, &mod.PriorReason, &mod.PriorActorID, &mod.PriorAt,
		&o.PharmacyActive, &o.PharmacyName, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	m, err := mod.Moderation()
	if err != nil {
		return nil, fmt.Errorf("offer %d: %w", o.ID, err)
	}
	o.Moderation = m
	o.StockQty = i64Ptr(stock)
	return &o, nil
}

// Get returns sql.ErrNoRows when the offer does not exist.
func (r *OfferRepo) Get(ctx context.Context, id uint64) (*model.Offer, error) {
	return scanOffer(r.db.QueryRowContext(ctx, offerSelect+" WHERE o.id=?", id))
}

// LockTx reads the offer and holds its row lock until tx ends.
func (r *OfferRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Offer, error) {
	return scanOffer(tx.QueryRowContext(ctx, offerSelect+" WHERE o.id=? FOR UPDATE OF o", id))
}

// SaveModerationTx writes every moderation column at once so reason, actor
// and timestamp are always set or cleared together.
func (r *OfferRepo) SaveModerationTx(ctx context.Context, tx *sql.Tx, id uint64, m model.Moderation) error {
	row := m.Row()
	_, err := tx.ExecContext(ctx,
		`UPDATE offers SET state=?, state_reason=?, state_actor_id=?, state_at=?,
		 prior_reason=?, prior_actor_id=?, prior_at=? WHERE id=?`,
		row.State, row.Reason, row.ActorID, row.At, row.PriorReason, row.PriorActorID, row.PriorAt, id)
	return err
}

// UpdateContent applies an owner/staff edit.  Existence is checked by the
// caller: MySQL reports zero affected rows for a no-op update.
func (r *OfferRepo) UpdateContent(ctx context.Context, id uint64, p model.OfferContentPatch) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if p.BookingPriceCents != nil {
		sets = append(sets, "booking_price_cents=?")
		args = append(args, *p.BookingPriceCents)
	}
	if p.ClearStock {
		sets = append(sets, "stock_qty=NULL")
	} else if p.StockQty != nil {
		sets = append(sets, "stock_qty=?")
		args = append(args, *p.StockQty)
	}
	if p.Currency != nil {
		sets = append(sets, "currency=?")
		args = append(args, *p.Currency)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.db.ExecContext(ctx, "UPDATE offers SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	return err
}
