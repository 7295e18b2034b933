package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

// ReservationRepo persists reservations, their items, the deposit payment
// and the status-event log.
type ReservationRepo struct{ db *sql.DB }

func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

func (r *ReservationRepo) DB() *sql.DB { return r.db }

// CreateTx inserts the reservation header and sets res.ID.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	out, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (account_id, pharmacy_id, status, total_deposit_cents, currency, customer_phone)
		 VALUES (?,?,?,?,?,?)`,
		res.AccountID, res.PharmacyID, string(res.Status), res.TotalDepositCents, res.Currency, res.CustomerPhone)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// CreateItemTx inserts one item and sets item.ID.
func (r *ReservationRepo) CreateItemTx(ctx context.Context, tx *sql.Tx, item *model.ReservationItem) error {
	out, err := tx.ExecContext(ctx,
		"INSERT INTO reservation_items (reservation_id, offer_id, quantity, unit_deposit_cents) VALUES (?,?,?,?)",
		item.ReservationID, item.OfferID, item.Quantity, item.UnitDepositCents)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = uint64(id)
	return nil
}

// CreatePaymentTx inserts the deposit payment and sets p.ID.
func (r *ReservationRepo) CreatePaymentTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	out, err := tx.ExecContext(ctx,
		`INSERT INTO payments (reservation_id, provider, status, amount_cents, currency, instruction)
		 VALUES (?,?,?,?,?,?)`,
		p.ReservationID, p.Provider, string(p.Status), p.AmountCents, p.Currency, p.Instruction)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// CreateProofTx attaches a screenshot URL to a payment.
func (r *ReservationRepo) CreateProofTx(ctx context.Context, tx *sql.Tx, paymentID uint64, url string, createdBy uint64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO payment_proofs (payment_id, type, value, created_by) VALUES (?, 'SCREENSHOT', ?, ?)",
		paymentID, url, createdBy)
	return err
}

// AppendEventTx adds an entry to the status log.
func (r *ReservationRepo) AppendEventTx(ctx context.Context, tx *sql.Tx, ev model.StatusEvent) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO reservation_status_events (reservation_id, status, note, actor_account_id, created_at) VALUES (?,?,?,?,?)",
		ev.ReservationID, string(ev.Status), ev.Note, ev.ActorID, ev.CreatedAt)
	return err
}

// TransitionTx moves a SUBMITTED reservation to status `to`, but only when
// actorID holds access to the reservation's pharmacy.  It reports false when
// the predicate matched nothing, which covers an unknown id, a reservation
// that already left SUBMITTED and a pharmacy the actor cannot act for.
func (r *ReservationRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id, actorID uint64, to model.ReservationStatus) (bool, error) {
	out, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status=?
		 WHERE id=? AND status='SUBMITTED' AND pharmacy_id IN (
		   SELECT pa.pharmacy_id FROM pharmacy_access pa
		   JOIN partner_users pu ON pu.id = pa.partner_user_id
		   WHERE pu.account_id=?)`,
		string(to), id, actorID)
	if err != nil {
		return false, err
	}
	n, err := out.RowsAffected()
	return n > 0, err
}

// PartiesTx returns the customer and pharmacy of a reservation.
func (r *ReservationRepo) PartiesTx(ctx context.Context, tx *sql.Tx, id uint64) (customerID, pharmacyID uint64, err error) {
	err = tx.QueryRowContext(ctx,
		"SELECT account_id, pharmacy_id FROM reservations WHERE id=?", id).Scan(&customerID, &pharmacyID)
	return customerID, pharmacyID, err
}

const reservationSelect = `SELECT r.id, r.account_id, r.pharmacy_id, r.status, r.total_deposit_cents, r.currency,
	r.customer_phone, r.created_at, r.updated_at,
	p.id, p.provider, p.status, p.amount_cents, p.instruction,
	(SELECT pp.value FROM payment_proofs pp WHERE pp.payment_id = p.id ORDER BY pp.id DESC LIMIT 1)
	FROM reservations r LEFT JOIN payments p ON p.reservation_id = r.id`

// ListByAccount returns the customer's newest reservations with items and
// payment.
func (r *ReservationRepo) ListByAccount(ctx context.Context, accountID uint64, limit int) ([]model.Reservation, error) {
	return r.list(ctx, reservationSelect+" WHERE r.account_id=? ORDER BY r.created_at DESC, r.id DESC LIMIT ?", accountID, limit)
}

// ListByPharmacy returns a pharmacy's newest reservations.
func (r *ReservationRepo) ListByPharmacy(ctx context.Context, pharmacyID uint64, limit int) ([]model.Reservation, error) {
	return r.list(ctx, reservationSelect+" WHERE r.pharmacy_id=? ORDER BY r.created_at DESC, r.id DESC LIMIT ?", pharmacyID, limit)
}

func (r *ReservationRepo) list(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	index := map[uint64]int{}
	for rows.Next() {
		var (
			res                    model.Reservation
			status                 string
			payID, payAmount       sql.NullInt64
			payProvider, payStatus sql.NullString
			payInstruction, proof  sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.AccountID, &res.PharmacyID, &status, &res.TotalDepositCents, &res.Currency,
			&res.CustomerPhone, &res.CreatedAt, &res.UpdatedAt,
			&payID, &payProvider, &payStatus, &payAmount, &payInstruction, &proof); err != nil {
			return nil, err
		}
		res.Status = model.ReservationStatus(status)
		if payID.Valid {
			res.Payment = &model.Payment{
				ID:            uint64(payID.Int64),
				ReservationID: res.ID,
				Provider:      payProvider.String,
				Status:        model.PaymentStatus(payStatus.String),
				AmountCents:   payAmount.Int64,
				Currency:      res.Currency,
				Instruction:   payInstruction.String,
				ProofURL:      strPtr(proof),
			}
		}
		index[res.ID] = len(out)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]any, 0, len(out))
	for _, res := range out {
		ids = append(ids, res.ID)
	}
	itemRows, err := r.db.QueryContext(ctx,
		"SELECT id, reservation_id, offer_id, quantity, unit_deposit_cents FROM reservation_items WHERE reservation_id IN ("+
			placeholders(len(ids))+") ORDER BY id", ids...)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it model.ReservationItem
		if err := itemRows.Scan(&it.ID, &it.ReservationID, &it.OfferID, &it.Quantity, &it.UnitDepositCents); err != nil {
			return nil, err
		}
		if i, ok := index[it.ReservationID]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	return out, itemRows.Err()
}
