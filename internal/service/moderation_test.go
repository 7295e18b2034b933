package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

const (
	lockOffer  = "WHERE o.id=? FOR UPDATE OF o"
	getOffer   = "FROM offers o JOIN pharmacies p"
	levelQuery = "SELECT pa.level FROM pharmacy_access"
	holders    = "SELECT DISTINCT pu.account_id FROM pharmacy_access"
)

func newModerationService(db *sql.DB) *ModerationService {
	s := NewModerationService(repository.NewOfferRepo(db), newAccess(db), newOutbox(db), zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestFreeze_PersistsAndNotifiesHolders(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q(lockOffer)).WithArgs(10).
		WillReturnRows(offerRow(10, model.OfferActive, "", 10000, nil))
	mock.ExpectExec(q("UPDATE offers SET state=?")).
		WithArgs("FROZEN", "counterfeit", 2, fixedNow, nil, nil, nil, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(holders)).WithArgs(3).WillReturnRows(idRows(20, 21))
	expectOutbox(mock, 1)
	mock.ExpectCommit()

	o, err := newModerationService(db).Freeze(context.Background(), 10, "counterfeit", ident(2, model.RoleModerator))
	require.NoError(t, err)
	assert.Equal(t, model.OfferFrozen, o.Moderation.State())
	require.NotNil(t, o.Moderation.FreezeMark())
	assert.Equal(t, uint64(2), o.Moderation.FreezeMark().ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFreeze_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		state  model.OfferState
		reason string
		want   error
	}{
		{"already frozen", model.OfferFrozen, "dup", ErrAlreadyFrozen},
		{"deleted", model.OfferDeleted, "gone", ErrOfferDeleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			mock.ExpectBegin()
			mock.ExpectQuery(q(lockOffer)).WillReturnRows(offerRow(10, tc.state, tc.reason, 10000, nil))
			mock.ExpectRollback()
			_, err := newModerationService(db).Freeze(context.Background(), 10, "again", ident(2, model.RoleModerator))
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, KindStateConflict, KindOf(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("blank reason", func(t *testing.T) {
		db, mock := setupMockDB(t)
		_, err := newModerationService(db).Freeze(context.Background(), 10, "  ", ident(2, model.RoleModerator))
		assert.ErrorIs(t, err, ErrReasonRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing offer", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(lockOffer)).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()
		_, err := newModerationService(db).Freeze(context.Background(), 10, "x", ident(2, model.RoleModerator))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUnfreeze_ClearsMetadata(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q(lockOffer)).WillReturnRows(offerRow(10, model.OfferFrozen, "counterfeit", 10000, nil))
	mock.ExpectExec(q("UPDATE offers SET state=?")).
		WithArgs("ACTIVE", nil, nil, nil, nil, nil, nil, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o, err := newModerationService(db).Unfreeze(context.Background(), 10, ident(2, model.RoleModerator))
	require.NoError(t, err)
	assert.Nil(t, o.Moderation.FreezeMark())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnfreeze_ActiveOffer(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q(lockOffer)).WillReturnRows(offerRow(10, model.OfferActive, "", 10000, nil))
	mock.ExpectRollback()

	_, err := newModerationService(db).Unfreeze(context.Background(), 10, ident(2, model.RoleModerator))
	assert.ErrorIs(t, err, ErrNotFrozen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteThenRestore_KeepsFreeze(t *testing.T) {
	db, mock := setupMockDB(t)
	s := newModerationService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockOffer)).WillReturnRows(offerRow(10, model.OfferFrozen, "counterfeit", 10000, nil))
	mock.ExpectExec(q("UPDATE offers SET state=?")).
		WithArgs("DELETED", "spam", 1, fixedNow, "counterfeit", 77, fixedNow, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(holders)).WillReturnRows(idRows(20))
	expectOutbox(mock, 1)
	mock.ExpectCommit()

	o, err := s.Delete(context.Background(), 10, "spam", ident(1, model.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, model.OfferDeleted, o.Moderation.State())

	deleted := sqlmock.NewRows(offerCols).AddRow(uint64(10), uint64(3), "Panadol", int64(10000), "USD", nil,
		"DELETED", "spam", int64(1), fixedNow, "counterfeit", int64(77), fixedNow,
		true, "Cedar Pharmacy", fixedNow, fixedNow)
	mock.ExpectBegin()
	mock.ExpectQuery(q(lockOffer)).WillReturnRows(deleted)
	mock.ExpectExec(q("UPDATE offers SET state=?")).
		WithArgs("FROZEN", "counterfeit", 77, fixedNow, nil, nil, nil, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o, err = s.Restore(context.Background(), 10, ident(1, model.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, model.OfferFrozen, o.Moderation.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_RequiresReason(t *testing.T) {
	db, mock := setupMockDB(t)
	_, err := newModerationService(db).Delete(context.Background(), 10, "", ident(1, model.RoleAdmin))
	assert.ErrorIs(t, err, ErrReasonRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_NotDeleted(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q(lockOffer)).WillReturnRows(offerRow(10, model.OfferActive, "", 10000, nil))
	mock.ExpectRollback()
	_, err := newModerationService(db).Restore(context.Background(), 10, ident(1, model.RoleAdmin))
	assert.ErrorIs(t, err, ErrNotDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestView_Visibility(t *testing.T) {
	t.Run("hidden offer is not found for anonymous", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WithArgs(10).
			WillReturnRows(offerRow(10, model.OfferFrozen, "counterfeit", 10000, nil))
		_, err := newModerationService(db).View(context.Background(), 10, nil)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("hidden offer is not found for outsiders", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferDeleted, "spam", 10000, nil))
		mock.ExpectQuery(q(levelQuery)).WithArgs(50, 3).WillReturnError(sql.ErrNoRows)
		_, err := newModerationService(db).View(context.Background(), 10, ident(50, model.RoleUser))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("access holder sees moderation metadata", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferFrozen, "counterfeit", 10000, int64(4)))
		mock.ExpectQuery(q(levelQuery)).WillReturnRows(levelRow("STAFF"))
		mock.ExpectQuery(q(levelQuery)).WillReturnRows(levelRow("STAFF"))
		v, err := newModerationService(db).View(context.Background(), 10, ident(20, model.RolePartnerOwner))
		require.NoError(t, err)
		assert.True(t, v.IsFrozen)
		require.NotNil(t, v.FrozenReason)
		assert.Equal(t, "counterfeit", *v.FrozenReason)
		assert.Equal(t, uint64(77), *v.FrozenBy)
		assert.True(t, v.IsPartner)
		assert.False(t, v.IsPharmacyOwner)
		assert.Equal(t, "100.00", v.BookingPrice)
		assert.Equal(t, int64(4), *v.StockQty)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("moderator sees hidden offer without access", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferDeleted, "spam", 10000, nil))
		mock.ExpectQuery(q(levelQuery)).WillReturnError(sql.ErrNoRows)
		v, err := newModerationService(db).View(context.Background(), 10, ident(2, model.RoleModerator))
		require.NoError(t, err)
		assert.True(t, v.IsDeleted)
		assert.False(t, v.IsPartner)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("active offer is public", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferActive, "", 10000, nil))
		v, err := newModerationService(db).View(context.Background(), 10, nil)
		require.NoError(t, err)
		assert.False(t, v.IsFrozen)
		assert.Nil(t, v.FrozenReason)
		assert.Equal(t, "ACTIVE", v.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnError(sql.ErrNoRows)
		_, err := newModerationService(db).View(context.Background(), 10, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRequestUnfreeze(t *testing.T) {
	t.Run("notifies admins", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferFrozen, "counterfeit", 10000, nil))
		mock.ExpectQuery(q(levelQuery)).WithArgs(20, 3).WillReturnRows(levelRow("OWNER"))
		mock.ExpectQuery(q("SELECT DISTINCT a.id FROM accounts")).WillReturnRows(idRows(1, 2))
		mock.ExpectBegin()
		expectOutbox(mock, 1)
		mock.ExpectCommit()
		err := newModerationService(db).RequestUnfreeze(context.Background(), 10, ident(20), "fixed the label")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("no access", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferFrozen, "counterfeit", 10000, nil))
		mock.ExpectQuery(q(levelQuery)).WillReturnError(sql.ErrNoRows)
		err := newModerationService(db).RequestUnfreeze(context.Background(), 10, ident(50), "")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("not frozen", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferActive, "", 10000, nil))
		mock.ExpectQuery(q(levelQuery)).WillReturnRows(levelRow("OWNER"))
		err := newModerationService(db).RequestUnfreeze(context.Background(), 10, ident(20), "")
		assert.ErrorIs(t, err, ErrNotFrozen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEditContent(t *testing.T) {
	price := 12.5
	stock := int64(0)
	bad := "EUR"

	t.Run("validation", func(t *testing.T) {
		db, mock := setupMockDB(t)
		s := newModerationService(db)
		neg := -1.0
		_, err := s.EditContent(context.Background(), 10, ident(20), ContentInput{BookingPrice: &neg})
		assert.Equal(t, "INVALID_PRICE", CodeOf(err))
		_, err = s.EditContent(context.Background(), 10, ident(20), ContentInput{StockQty: &stock})
		assert.Equal(t, "INVALID_STOCK", CodeOf(err))
		_, err = s.EditContent(context.Background(), 10, ident(20), ContentInput{Currency: &bad})
		assert.Equal(t, "INVALID_CURRENCY", CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("holder edits", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferActive, "", 10000, int64(5)))
		mock.ExpectQuery(q(levelQuery)).WillReturnRows(levelRow("STAFF"))
		mock.ExpectExec(q("UPDATE offers SET booking_price_cents=?, stock_qty=NULL WHERE id=?")).
			WithArgs(1250, 10).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferActive, "", 1250, nil))
		mock.ExpectQuery(q(levelQuery)).WillReturnRows(levelRow("STAFF"))
		v, err := newModerationService(db).EditContent(context.Background(), 10, ident(20),
			ContentInput{BookingPrice: &price, ClearStock: true})
		require.NoError(t, err)
		assert.Equal(t, "12.50", v.BookingPrice)
		assert.Nil(t, v.StockQty)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("outsider on visible offer", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferActive, "", 10000, nil))
		mock.ExpectQuery(q(levelQuery)).WillReturnError(sql.ErrNoRows)
		_, err := newModerationService(db).EditContent(context.Background(), 10, ident(50), ContentInput{BookingPrice: &price})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("outsider on hidden offer", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(q(getOffer)).WillReturnRows(offerRow(10, model.OfferFrozen, "x", 10000, nil))
		mock.ExpectQuery(q(levelQuery)).WillReturnError(sql.ErrNoRows)
		_, err := newModerationService(db).EditContent(context.Background(), 10, ident(50), ContentInput{BookingPrice: &price})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
