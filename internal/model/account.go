package model

import (
	"strings"
	"time"
)

// Role names stored in account_roles.role.
const (
	RoleUser         = "USER"
	RolePartnerOwner = "PARTNER_OWNER"
	RoleModerator    = "MODERATOR"
	RoleAdmin        = "ADMIN"
)

// Account represents a row in the `accounts` table.  Customers, partners,
// moderators and administrators all share this table; capabilities are
// granted through account_roles and pharmacy_access.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique, lower-cased email address.
//  Phone        – contact phone used for reservations (nullable).
//  Name         – display name (nullable).
//  PasswordHash – bcrypt hash of the password.
//  CreatedAt    – timestamp of creation.
type Account struct {
	ID           uint64    // accounts.id
	Email        string    // accounts.email
	Phone        *string   // accounts.phone (nullable)
	Name         *string   // accounts.name (nullable)
	PasswordHash string    // accounts.password_hash
	CreatedAt    time.Time // accounts.created_at
}

// Identity is the resolved session of a request: who is calling and with
// which roles.  Workflows only ever see this value, never the raw token.
type Identity struct {
	AccountID uint64
	Email     string
	Roles     []string
}

// HasRole reports whether the identity carries role r.  Comparison is
// case-insensitive because roles may arrive from token claims.
func (i *Identity) HasRole(r string) bool {
	if i == nil {
		return false
	}
	for _, have := range i.Roles {
		if strings.EqualFold(have, r) {
			return true
		}
	}
	return false
}
