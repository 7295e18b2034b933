package model

import "time"

// ApplicationStatus is the lifecycle state of a partner application.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "PENDING"
	ApplicationApproved  ApplicationStatus = "APPROVED"
	ApplicationRejected  ApplicationStatus = "REJECTED"
	ApplicationCancelled ApplicationStatus = "CANCELLED"
)

// PartnerStatus is the display state returned to an applicant.
type PartnerStatus string

const (
	PartnerStatusPartner   PartnerStatus = "PARTNER"
	PartnerStatusInProcess PartnerStatus = "IN_PROCESS"
	PartnerStatusRejected  PartnerStatus = "REJECTED"
	PartnerStatusApproved  PartnerStatus = "APPROVED"
	PartnerStatusNone      PartnerStatus = "NONE"
)

// AccessLevel grants a partner user capability over one pharmacy.
type AccessLevel string

const (
	AccessOwner AccessLevel = "OWNER"
	AccessStaff AccessLevel = "STAFF"
)

// PartnerApplication mirrors the `partner_applications` table.  There is
// at most one row per applicant account; re-applying after a rejection or
// cancellation resets the same row to PENDING.
type PartnerApplication struct {
	ID            uint64            // partner_applications.id
	AccountID     uint64            // partner_applications.account_id (unique)
	Status        ApplicationStatus // partner_applications.status
	OrgName       string            // partner_applications.org_name
	ChainName     string            // partner_applications.chain_name
	LegalName     *string           // partner_applications.legal_name (nullable)
	Phone         *string           // partner_applications.phone (nullable)
	Website       *string           // partner_applications.website (nullable)
	DecidedBy     *uint64           // partner_applications.decided_by (nullable)
	DecidedAt     *time.Time        // partner_applications.decided_at (nullable)
	RejectReason  *string           // partner_applications.reject_reason (nullable)
	ChainID       *uint64           // partner_applications.chain_id (nullable)
	OrgID         *uint64           // partner_applications.org_id (nullable)
	PartnerUserID *uint64           // partner_applications.partner_user_id (nullable)
	CreatedAt     time.Time         // partner_applications.created_at
	UpdatedAt     time.Time         // partner_applications.updated_at
}

// DisplayStatus derives what the applicant sees.  hasPartnerUser wins over
// anything recorded on the application.  An APPROVED application without a
// partner user is inconsistent; it is reported as APPROVED so callers can
// flag it.
func DisplayStatus(app *PartnerApplication, hasPartnerUser bool) (PartnerStatus, bool) {
	if hasPartnerUser {
		return PartnerStatusPartner, false
	}
	if app == nil {
		return PartnerStatusNone, false
	}
	switch app.Status {
	case ApplicationPending:
		return PartnerStatusInProcess, false
	case ApplicationRejected:
		return PartnerStatusRejected, false
	case ApplicationApproved:
		return PartnerStatusApproved, true
	default:
		return PartnerStatusNone, false
	}
}

// PharmacyChain mirrors `pharmacy_chains`; name is unique.
type PharmacyChain struct {
	ID        uint64  // pharmacy_chains.id
	Name      string  // pharmacy_chains.name
	LegalName *string // pharmacy_chains.legal_name
	Phone     *string // pharmacy_chains.phone
	Website   *string // pharmacy_chains.website
}

// PartnerOrg mirrors `partner_orgs`.
type PartnerOrg struct {
	ID      uint64 // partner_orgs.id
	Name    string // partner_orgs.name
	ChainID uint64 // partner_orgs.chain_id
}

// PartnerUser mirrors `partner_users`.  account_id is unique so an account
// can become a partner at most once.
type PartnerUser struct {
	ID        uint64    // partner_users.id
	AccountID uint64    // partner_users.account_id
	OrgID     uint64    // partner_users.org_id
	OrgName   string    // partner_orgs.name (joined)
	ChainID   uint64    // partner_orgs.chain_id (joined)
	ChainName string    // pharmacy_chains.name (joined)
	CreatedAt time.Time // partner_users.created_at
}
