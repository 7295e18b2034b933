package service

import (
	"context"
	"database/sql"

	"github.com/iliyamo/pharmacy-marketplace/internal/config"
	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

// Access answers role and ownership questions.  It never mutates state.
// Role membership and the email allow-lists are equally authoritative.
type Access struct {
	access   *repository.AccessRepo
	accounts *repository.AccountRepo
	policy   config.AccessPolicy
}

func NewAccess(access *repository.AccessRepo, accounts *repository.AccountRepo, policy config.AccessPolicy) *Access {
	return &Access{access: access, accounts: accounts, policy: policy}
}

// IsAdmin: role ADMIN or an allow-listed email.
func (a *Access) IsAdmin(id *model.Identity) bool {
	if id == nil {
		return false
	}
	return id.HasRole(model.RoleAdmin) || a.policy.IsAdminEmail(id.Email)
}

// IsModerator: admins plus role MODERATOR.
func (a *Access) IsModerator(id *model.Identity) bool {
	return a.IsAdmin(id) || id.HasRole(model.RoleModerator)
}

// IsPharmacyOwner is true iff an OWNER-level access record exists.
func (a *Access) IsPharmacyOwner(ctx context.Context, accountID, pharmacyID uint64) (bool, error) {
	level, ok, err := a.access.Level(ctx, accountID, pharmacyID)
	if err != nil || !ok {
		return false, err
	}
	return level == model.AccessOwner, nil
}

// HasPharmacyAccess is true iff any access record exists.
func (a *Access) HasPharmacyAccess(ctx context.Context, accountID, pharmacyID uint64) (bool, error) {
	_, ok, err := a.access.Level(ctx, accountID, pharmacyID)
	return ok, err
}

// CanViewHidden decides whether a viewer may see a hidden offer of the
// pharmacy.  An anonymous viewer never can.
func (a *Access) CanViewHidden(ctx context.Context, id *model.Identity, pharmacyID uint64) (bool, error) {
	if id == nil {
		return false, nil
	}
	if a.IsModerator(id) {
		return true, nil
	}
	return a.HasPharmacyAccess(ctx, id.AccountID, pharmacyID)
}

// PrivilegedAccountIDs lists admins by role or allow-listed email.
func (a *Access) PrivilegedAccountIDs(ctx context.Context) ([]uint64, error) {
	return a.accounts.PrivilegedIDs(ctx, a.policy.Emails())
}

// Membership returns the caller's access level on a pharmacy, if any.
func (a *Access) Membership(ctx context.Context, accountID, pharmacyID uint64) (model.AccessLevel, bool, error) {
	return a.access.Level(ctx, accountID, pharmacyID)
}

// AccessHolders lists the distinct accounts holding any access level on a
// pharmacy.
func (a *Access) AccessHolders(ctx context.Context, pharmacyID uint64) ([]uint64, error) {
	return a.access.HolderIDs(ctx, pharmacyID)
}

// AccessHoldersTx is AccessHolders inside tx.
func (a *Access) AccessHoldersTx(ctx context.Context, tx *sql.Tx, pharmacyID uint64) ([]uint64, error) {
	return a.access.HolderIDsTx(ctx, tx, pharmacyID)
}
