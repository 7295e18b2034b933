package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

// PartnerRepo covers partner applications and the entities an approval
// creates: chains, orgs and partner users.
type PartnerRepo struct{ db *sql.DB }

func NewPartnerRepo(db *sql.DB) *PartnerRepo { return &PartnerRepo{db: db} }

func (r *PartnerRepo) DB() *sql.DB { return r.db }

const applicationColumns = "id,account_id,status,org_name,chain_name,legal_name,phone,website," +
	"decided_by,decided_at,reject_reason,chain_id,org_id,partner_user_id,created_at,updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*model.PartnerApplication, error) {
	var (
		a                            model.PartnerApplication
		status                       string
		legal, phone, web, reason    sql.NullString
		decidedBy, chain, org, puser sql.NullInt64
		decidedAt                    sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.AccountID, &status, &a.OrgName, &a.ChainName, &legal, &phone, &web,
		&decidedBy, &decidedAt, &reason, &chain, &org, &puser, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = model.ApplicationStatus(status)
	a.LegalName, a.Phone, a.Website, a.RejectReason = strPtr(legal), strPtr(phone), strPtr(web), strPtr(reason)
	a.DecidedBy, a.ChainID, a.OrgID, a.PartnerUserID = u64Ptr(decidedBy), u64Ptr(chain), u64Ptr(org), u64Ptr(puser)
	a.DecidedAt = timePtr(decidedAt)
	return &a, nil
}

// GetApplicationByAccount returns the applicant's single application, or
// sql.ErrNoRows.
func (r *PartnerRepo) GetApplicationByAccount(ctx context.Context, accountID uint64) (*model.PartnerApplication, error) {
	return scanApplication(r.db.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM partner_applications WHERE account_id=?", accountID))
}

// LockApplicationTx reads and row-locks an application for the rest of tx.
func (r *PartnerRepo) LockApplicationTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.PartnerApplication, error) {
	return scanApplication(tx.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM partner_applications WHERE id=? FOR UPDATE", id))
}

// LockApplicationByAccountTx is LockApplicationTx keyed by applicant.
func (r *PartnerRepo) LockApplicationByAccountTx(ctx context.Context, tx *sql.Tx, accountID uint64) (*model.PartnerApplication, error) {
	return scanApplication(tx.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM partner_applications WHERE account_id=? FOR UPDATE", accountID))
}

// ApplicationInput carries the applicant-editable fields.
type ApplicationInput struct {
	OrgName   string
	ChainName string
	LegalName *string
	Phone     *string
	Website   *string
}

// UpsertPendingTx creates the applicant's application or resets an existing
// one to PENDING, clearing every decision field.
func (r *PartnerRepo) UpsertPendingTx(ctx context.Context, tx *sql.Tx, accountID uint64, in ApplicationInput) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO partner_applications (account_id, status, org_name, chain_name, legal_name, phone, website)
		 VALUES (?, 'PENDING', ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE id=LAST_INSERT_ID(id), status='PENDING',
		   org_name=VALUES(org_name), chain_name=VALUES(chain_name), legal_name=VALUES(legal_name),
		   phone=VALUES(phone), website=VALUES(website),
		   decided_by=NULL, decided_at=NULL, reject_reason=NULL,
		   chain_id=NULL, org_id=NULL, partner_user_id=NULL`,
		accountID, in.OrgName, in.ChainName, in.LegalName, in.Phone, in.Website)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdateFieldsTx edits the applicant fields of a row the caller locked
// and checked to be PENDING.
func (r *PartnerRepo) UpdateFieldsTx(ctx context.Context, tx *sql.Tx, id uint64, in ApplicationInput) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE partner_applications SET org_name=?, chain_name=?, legal_name=?, phone=?, website=?
		 WHERE id=? AND status='PENDING'`,
		in.OrgName, in.ChainName, in.LegalName, in.Phone, in.Website, id)
	return err
}

// CancelTx moves a locked PENDING application to CANCELLED.
func (r *PartnerRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE partner_applications SET status='CANCELLED' WHERE id=? AND status='PENDING'", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// UpsertChainTx inserts a chain or updates the optional fields of the chain
// with the same name, returning its ID either way.
func (r *PartnerRepo) UpsertChainTx(ctx context.Context, tx *sql.Tx, c model.PharmacyChain) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO pharmacy_chains (name, legal_name, phone, website) VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE id=LAST_INSERT_ID(id),
		   legal_name=COALESCE(VALUES(legal_name), legal_name),
		   phone=COALESCE(VALUES(phone), phone),
		   website=COALESCE(VALUES(website), website)`,
		c.Name, c.LegalName, c.Phone, c.Website)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateOrgTx inserts an org under chainID.
func (r *PartnerRepo) CreateOrgTx(ctx context.Context, tx *sql.Tx, name string, chainID uint64) (uint64, error) {
	res, err := tx.ExecContext(ctx, "INSERT INTO partner_orgs (name, chain_id) VALUES (?,?)", name, chainID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreatePartnerUserTx inserts the partner user of an account.  An account
// that already has one yields ErrDuplicate.
func (r *PartnerRepo) CreatePartnerUserTx(ctx context.Context, tx *sql.Tx, accountID, orgID uint64) (uint64, error) {
	res, err := tx.ExecContext(ctx, "INSERT INTO partner_users (account_id, org_id) VALUES (?,?)", accountID, orgID)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Decision is the outcome written onto an application.
type Decision struct {
	Status        model.ApplicationStatus
	DecidedBy     uint64
	DecidedAt     time.Time
	RejectReason  *string
	ChainID       *uint64
	OrgID         *uint64
	PartnerUserID *uint64
}

// DecideTx records the decision.  The status guard makes a decision on a
// non-PENDING row fail with ErrConflict.
func (r *PartnerRepo) DecideTx(ctx context.Context, tx *sql.Tx, id uint64, d Decision) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE partner_applications
		 SET status=?, decided_by=?, decided_at=?, reject_reason=?, chain_id=?, org_id=?, partner_user_id=?
		 WHERE id=? AND status='PENDING'`,
		string(d.Status), d.DecidedBy, d.DecidedAt, d.RejectReason, d.ChainID, d.OrgID, d.PartnerUserID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// HasPartnerUser reports whether the account already became a partner.
func (r *PartnerRepo) HasPartnerUser(ctx context.Context, accountID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM partner_users WHERE account_id=?", accountID).Scan(&n)
	return n > 0, err
}

// HasPartnerUserTx is HasPartnerUser inside tx.
func (r *PartnerRepo) HasPartnerUserTx(ctx context.Context, tx *sql.Tx, accountID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM partner_users WHERE account_id=?", accountID).Scan(&n)
	return n > 0, err
}

// GetPartnerUser returns the partner user of an account with its org and
// chain names.
func (r *PartnerRepo) GetPartnerUser(ctx context.Context, accountID uint64) (*model.PartnerUser, error) {
	var pu model.PartnerUser
	err := r.db.QueryRowContext(ctx,
		`SELECT pu.id, pu.account_id, pu.org_id, o.name, o.chain_id, c.name, pu.created_at
		 FROM partner_users pu
		 JOIN partner_orgs o ON o.id = pu.org_id
		 JOIN pharmacy_chains c ON c.id = o.chain_id
		 WHERE pu.account_id=?`, accountID).
		Scan(&pu.ID, &pu.AccountID, &pu.OrgID, &pu.OrgName, &pu.ChainID, &pu.ChainName, &pu.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &pu, nil
}

// ListApplications pages applications with the given status, oldest first.
func (r *PartnerRepo) ListApplications(ctx context.Context, status model.ApplicationStatus, limit, offset int) ([]model.PartnerApplication, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+applicationColumns+" FROM partner_applications WHERE status=? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?",
		string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PartnerApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CountByStatus returns the number of applications per status.
func (r *PartnerRepo) CountByStatus(ctx context.Context) (map[model.ApplicationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM partner_applications GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.ApplicationStatus]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.ApplicationStatus(status)] = n
	}
	return out, rows.Err()
}
