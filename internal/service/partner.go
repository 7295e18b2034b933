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

// PartnerService runs the partner onboarding pipeline.
type PartnerService struct {
	partners *repository.PartnerRepo
	accounts *repository.AccountRepo
	outbox   *queue.Outbox
	log      *zap.Logger
	now      func() time.Time
}

func NewPartnerService(p *repository.PartnerRepo, a *repository.AccountRepo, o *queue.Outbox, log *zap.Logger) *PartnerService {
	return &PartnerService{partners: p, accounts: a, outbox: o, log: log, now: time.Now}
}

// ApplicationInput is what an applicant submits or edits.
type ApplicationInput struct {
	OrgName   string  `json:"orgName"`
	ChainName string  `json:"chainName"`
	LegalName *string `json:"legalName"`
	Phone     *string `json:"phone"`
	Website   *string `json:"website"`
}

const maxNameLen = 120

func (in ApplicationInput) normalize() (repository.ApplicationInput, error) {
	out := repository.ApplicationInput{
		OrgName:   strings.TrimSpace(in.OrgName),
		ChainName: strings.TrimSpace(in.ChainName),
		LegalName: optional(in.LegalName),
		Phone:     optional(in.Phone),
		Website:   optional(in.Website),
	}
	if out.OrgName == "" || len(out.OrgName) > maxNameLen {
		return out, Validation("INVALID_ORG_NAME")
	}
	if out.ChainName == "" || len(out.ChainName) > maxNameLen {
		return out, Validation("INVALID_CHAIN_NAME")
	}
	if out.Phone != nil && len(*out.Phone) < 3 {
		return out, Validation("INVALID_PHONE")
	}
	if out.Website != nil && len(*out.Website) < 3 {
		return out, Validation("INVALID_WEBSITE")
	}
	return out, nil
}

// optional trims s and turns blank into nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Apply creates the caller's application or resets a decided one back to
// PENDING.
func (s *PartnerService) Apply(ctx context.Context, accountID uint64, in ApplicationInput) (uint64, error) {
	fields, err := in.normalize()
	if err != nil {
		return 0, err
	}
	var id uint64
	err = database.InTx(ctx, s.partners.DB(), func(tx *sql.Tx) error {
		partner, err := s.partners.HasPartnerUserTx(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if partner {
			return ErrAlreadyPartner
		}
		app, err := s.partners.LockApplicationByAccountTx(ctx, tx, accountID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		case app.Status == model.ApplicationPending:
			return ErrAlreadyInProcess
		}
		id, err = s.partners.UpsertPendingTx(ctx, tx, accountID, fields)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("partner application submitted", zap.Uint64("account_id", accountID), zap.Uint64("application_id", id))
	return id, nil
}

// Edit changes a PENDING application.
func (s *PartnerService) Edit(ctx context.Context, accountID uint64, in ApplicationInput) error {
	fields, err := in.normalize()
	if err != nil {
		return err
	}
	return database.InTx(ctx, s.partners.DB(), func(tx *sql.Tx) error {
		app, err := s.lockOwn(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if app.Status != model.ApplicationPending {
			return ErrNotEditable
		}
		return s.partners.UpdateFieldsTx(ctx, tx, app.ID, fields)
	})
}

// Cancel withdraws a PENDING application.
func (s *PartnerService) Cancel(ctx context.Context, accountID uint64) error {
	return database.InTx(ctx, s.partners.DB(), func(tx *sql.Tx) error {
		app, err := s.lockOwn(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if app.Status != model.ApplicationPending {
			return ErrNotCancellable
		}
		if err := s.partners.CancelTx(ctx, tx, app.ID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrNotCancellable
			}
			return err
		}
		return nil
	})
}

func (s *PartnerService) lockOwn(ctx context.Context, tx *sql.Tx, accountID uint64) (*model.PartnerApplication, error) {
	app, err := s.partners.LockApplicationByAccountTx(ctx, tx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return app, err
}

// Approval lists what an approval created.
type Approval struct {
	ApplicationID uint64 `json:"applicationId"`
	ChainID       uint64 `json:"chainId"`
	OrgID         uint64 `json:"orgId"`
	PartnerUserID uint64 `json:"partnerUserId"`
}

// Approve turns a PENDING application into a chain, an org and a partner
// user in one transaction.  The application row is locked and re-checked
// inside the transaction so racing approvals cannot both succeed.  If the
// applicant already has a partner user nothing is written.
func (s *PartnerService) Approve(ctx context.Context, applicationID uint64, admin *model.Identity) (*Approval, error) {
	var out Approval
	err := database.InTx(ctx, s.partners.DB(), func(tx *sql.Tx) error {
		app, err := s.lockPending(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		chainID, err := s.partners.UpsertChainTx(ctx, tx, model.PharmacyChain{
			Name:      app.ChainName,
			LegalName: app.LegalName,
			Phone:     app.Phone,
			Website:   app.Website,
		})
		if err != nil {
			return fmt.Errorf("upsert chain: %w", err)
		}
		orgID, err := s.partners.CreateOrgTx(ctx, tx, app.OrgName, chainID)
		if err != nil {
			return fmt.Errorf("create org: %w", err)
		}
		puID, err := s.partners.CreatePartnerUserTx(ctx, tx, app.AccountID, orgID)
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrAlreadyPartner
		}
		if err != nil {
			return fmt.Errorf("create partner user: %w", err)
		}

		err = s.partners.DecideTx(ctx, tx, app.ID, repository.Decision{
			Status:        model.ApplicationApproved,
			DecidedBy:     admin.AccountID,
			DecidedAt:     s.now().UTC(),
			ChainID:       &chainID,
			OrgID:         &orgID,
			PartnerUserID: &puID,
		})
		if errors.Is(err, repository.ErrConflict) {
			return ErrNotPending
		}
		if err != nil {
			return err
		}
		if err := s.accounts.GrantRoleTx(ctx, tx, app.AccountID, model.RolePartnerOwner); err != nil {
			return fmt.Errorf("grant partner role: %w", err)
		}
		if err := s.outbox.NotifyTx(ctx, tx, []uint64{app.AccountID}, queue.Notice{
			Type:  model.NotifyApplicationApproved,
			Title: "Partner application approved",
			Body:  fmt.Sprintf("Your application for %s has been approved.", app.OrgName),
			RefID: fmt.Sprint(app.ID),
		}); err != nil {
			return err
		}
		out = Approval{ApplicationID: app.ID, ChainID: chainID, OrgID: orgID, PartnerUserID: puID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("partner application approved",
		zap.Uint64("application_id", applicationID), zap.Uint64("admin_id", admin.AccountID))
	return &out, nil
}

// Reject declines a PENDING application.  A blank reason is stored as NULL.
func (s *PartnerService) Reject(ctx context.Context, applicationID uint64, admin *model.Identity, reason *string) error {
	reason = optional(reason)
	err := database.InTx(ctx, s.partners.DB(), func(tx *sql.Tx) error {
		app, err := s.lockPending(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		err = s.partners.DecideTx(ctx, tx, app.ID, repository.Decision{
			Status:       model.ApplicationRejected,
			DecidedBy:    admin.AccountID,
			DecidedAt:    s.now().UTC(),
			RejectReason: reason,
		})
		if errors.Is(err, repository.ErrConflict) {
			return ErrNotPending
		}
		if err != nil {
			return err
		}
		body := "Your partner application was not accepted."
		if reason != nil {
			body += " Reason: " + *reason
		}
		return s.outbox.NotifyTx(ctx, tx, []uint64{app.AccountID}, queue.Notice{
			Type:  model.NotifyApplicationRejected,
			Title: "Partner application rejected",
			Body:  body,
			RefID: fmt.Sprint(app.ID),
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("partner application rejected",
		zap.Uint64("application_id", applicationID), zap.Uint64("admin_id", admin.AccountID))
	return nil
}

func (s *PartnerService) lockPending(ctx context.Context, tx *sql.Tx, id uint64) (*model.PartnerApplication, error) {
	app, err := s.partners.LockApplicationTx(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if app.Status != model.ApplicationPending {
		return nil, ErrNotPending
	}
	return app, nil
}

// StatusView is what GET /partners/status returns.
type StatusView struct {
	Status       model.PartnerStatus       `json:"status"`
	Inconsistent bool                      `json:"inconsistent,omitempty"`
	Application  *model.PartnerApplication `json:"application,omitempty"`
}

// Status derives the applicant's display state.
func (s *PartnerService) Status(ctx context.Context, accountID uint64) (*StatusView, error) {
	partner, err := s.partners.HasPartnerUser(ctx, accountID)
	if err != nil {
		return nil, err
	}
	app, err := s.partners.GetApplicationByAccount(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		app, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	st, inconsistent := model.DisplayStatus(app, partner)
	if inconsistent {
		s.log.Warn("approved application without partner user", zap.Uint64("account_id", accountID))
	}
	return &StatusView{Status: st, Inconsistent: inconsistent, Application: app}, nil
}

// Me returns the caller's partner record.
func (s *PartnerService) Me(ctx context.Context, accountID uint64) (*model.PartnerUser, error) {
	pu, err := s.partners.GetPartnerUser(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return pu, err
}

// List pages applications for the admin queue.
func (s *PartnerService) List(ctx context.Context, status string, limit, offset int) ([]model.PartnerApplication, error) {
	st := model.ApplicationStatus(strings.ToUpper(strings.TrimSpace(status)))
	switch st {
	case "":
		st = model.ApplicationPending
	case model.ApplicationPending, model.ApplicationApproved, model.ApplicationRejected, model.ApplicationCancelled:
	default:
		return nil, Validation("INVALID_STATUS")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	apps, err := s.partners.ListApplications(ctx, st, limit, offset)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []model.PartnerApplication{}
	}
	return apps, nil
}

// Dashboard counts applications per status, zero-filled.
func (s *PartnerService) Dashboard(ctx context.Context) (map[model.ApplicationStatus]int, error) {
	counts, err := s.partners.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range []model.ApplicationStatus{
		model.ApplicationPending, model.ApplicationApproved, model.ApplicationRejected, model.ApplicationCancelled,
	} {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}
