package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

// PharmacyRepo reads pharmacy configuration used by the reservation flow.
type PharmacyRepo struct{ db *sql.DB }

func NewPharmacyRepo(db *sql.DB) *PharmacyRepo { return &PharmacyRepo{db: db} }

// PaymentOption returns how the pharmacy accepts the given method.  A
// method the pharmacy never configured yields sql.ErrNoRows.
func (r *PharmacyRepo) PaymentOption(ctx context.Context, pharmacyID uint64, code string) (model.PaymentOption, error) {
	var (
		opt   model.PaymentOption
		payTo sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT pm.code, pm.is_active, ppm.is_enabled, ppm.pay_to_identifier
		 FROM pharmacy_payment_methods ppm
		 JOIN payment_methods pm ON pm.code = ppm.method_code
		 WHERE ppm.pharmacy_id=? AND ppm.method_code=?`, pharmacyID, code).
		Scan(&opt.Code, &opt.MethodActive, &opt.Enabled, &payTo)
	if err != nil {
		return model.PaymentOption{}, err
	}
	opt.PayTo = strPtr(payTo)
	return opt, nil
}
