package handler

import (
	"time"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

// ----- DTOs -----

type applicationDTO struct {
	ID            uint64     `json:"id"`
	AccountID     uint64     `json:"accountId"`
	Status        string     `json:"status"`
	OrgName       string     `json:"orgName"`
	ChainName     string     `json:"chainName"`
	LegalName     *string    `json:"legalName"`
	Phone         *string    `json:"phone"`
	Website       *string    `json:"website"`
	DecidedBy     *uint64    `json:"decidedBy"`
	DecidedAt     *time.Time `json:"decidedAt"`
	RejectReason  *string    `json:"rejectReason"`
	ChainID       *uint64    `json:"chainId"`
	OrgID         *uint64    `json:"orgId"`
	PartnerUserID *uint64    `json:"partnerUserId"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toApplicationDTO(a *model.PartnerApplication) *applicationDTO {
	if a == nil {
		return nil
	}
	return &applicationDTO{
		ID: a.ID, AccountID: a.AccountID, Status: string(a.Status),
		OrgName: a.OrgName, ChainName: a.ChainName,
		LegalName: a.LegalName, Phone: a.Phone, Website: a.Website,
		DecidedBy: a.DecidedBy, DecidedAt: a.DecidedAt, RejectReason: a.RejectReason,
		ChainID: a.ChainID, OrgID: a.OrgID, PartnerUserID: a.PartnerUserID,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

type partnerUserDTO struct {
	ID        uint64    `json:"id"`
	AccountID uint64    `json:"accountId"`
	OrgID     uint64    `json:"orgId"`
	OrgName   string    `json:"orgName"`
	ChainID   uint64    `json:"chainId"`
	ChainName string    `json:"chainName"`
	CreatedAt time.Time `json:"createdAt"`
}

type itemDTO struct {
	OfferID     uint64 `json:"offerId"`
	Quantity    int    `json:"quantity"`
	UnitDeposit string `json:"unitDeposit"`
}

type paymentDTO struct {
	ID          uint64  `json:"id"`
	Method      string  `json:"method"`
	Status      string  `json:"status"`
	Amount      string  `json:"amount"`
	Instruction string  `json:"instruction"`
	ProofURL    *string `json:"proofUrl"`
}

type reservationDTO struct {
	ID            uint64      `json:"id"`
	AccountID     uint64      `json:"accountId"`
	PharmacyID    uint64      `json:"pharmacyId"`
	Status        string      `json:"status"`
	TotalDeposit  string      `json:"totalDeposit"`
	Currency      string      `json:"currency"`
	CustomerPhone string      `json:"customerPhone"`
	CreatedAt     time.Time   `json:"createdAt"`
	Items         []itemDTO   `json:"items"`
	Payment       *paymentDTO `json:"payment"`
}

func toReservationDTOs(list []model.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(list))
	for _, r := range list {
		d := reservationDTO{
			ID: r.ID, AccountID: r.AccountID, PharmacyID: r.PharmacyID,
			Status: string(r.Status), TotalDeposit: model.FormatCents(r.TotalDepositCents),
			Currency: r.Currency, CustomerPhone: r.CustomerPhone, CreatedAt: r.CreatedAt,
			Items: make([]itemDTO, 0, len(r.Items)),
		}
		for _, it := range r.Items {
			d.Items = append(d.Items, itemDTO{OfferID: it.OfferID, Quantity: it.Quantity, UnitDeposit: model.FormatCents(it.UnitDepositCents)})
		}
		if p := r.Payment; p != nil {
			d.Payment = &paymentDTO{
				ID: p.ID, Method: p.Provider, Status: string(p.Status),
				Amount: model.FormatCents(p.AmountCents), Instruction: p.Instruction, ProofURL: p.ProofURL,
			}
		}
		out = append(out, d)
	}
	return out
}

type notificationDTO struct {
	ID        uint64     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	RefID     *string    `json:"refId"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}
