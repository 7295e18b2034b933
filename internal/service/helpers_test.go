package service

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pharmacy-marketplace/internal/config"
	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/queue"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// q turns a literal SQL fragment into a sqlmock pattern.
func q(fragment string) string { return regexp.QuoteMeta(fragment) }

func newAccess(db *sql.DB, adminEmails ...string) *Access {
	return NewAccess(repository.NewAccessRepo(db), repository.NewAccountRepo(db),
		config.NewAccessPolicy(adminEmails, nil, ""))
}

func newOutbox(db *sql.DB) *queue.Outbox {
	return queue.NewOutbox(repository.NewOutboxRepo(db))
}

func expectOutbox(mock sqlmock.Sqlmock, id int64) {
	mock.ExpectExec(q("INSERT INTO outbox_events")).WillReturnResult(sqlmock.NewResult(id, 1))
}

func ident(id uint64, roles ...string) *model.Identity {
	return &model.Identity{AccountID: id, Email: "user@example.com", Roles: roles}
}

var applicationCols = []string{"id", "account_id", "status", "org_name", "chain_name", "legal_name", "phone", "website",
	"decided_by", "decided_at", "reject_reason", "chain_id", "org_id", "partner_user_id", "created_at", "updated_at"}

func applicationRow(id, accountID uint64, status model.ApplicationStatus) *sqlmock.Rows {
	return sqlmock.NewRows(applicationCols).AddRow(id, accountID, string(status), "Cedar Org", "Cedar Chain",
		nil, "+961111", nil, nil, nil, nil, nil, nil, nil, fixedNow, fixedNow)
}

var offerCols = []string{"id", "pharmacy_id", "product_name", "booking_price_cents", "currency", "stock_qty",
	"state", "state_reason", "state_actor_id", "state_at", "prior_reason", "prior_actor_id", "prior_at",
	"is_active", "name", "created_at", "updated_at"}

// offerRow builds an offer row for pharmacy 3.  reason non-empty sets the
// current moderation mark.
func offerRow(id uint64, state model.OfferState, reason string, price int64, stock any) *sqlmock.Rows {
	var r, actor, at any
	if reason != "" {
		r, actor, at = reason, int64(77), fixedNow
	}
	return sqlmock.NewRows(offerCols).AddRow(id, uint64(3), "Panadol", price, "USD", stock,
		string(state), r, actor, at, nil, nil, nil, true, "Cedar Pharmacy", fixedNow, fixedNow)
}

func levelRow(level string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"level"}).AddRow(level)
}

func idRows(ids ...uint64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"account_id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	return rows
}
