package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

func newNotificationService(db *sql.DB) *NotificationService {
	s := NewNotificationService(repository.NewNotificationRepo(db))
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestNotificationList(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(q("FROM notifications")).WithArgs(9, notificationLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "type", "title", "body", "ref_id", "read_at", "created_at"}).
			AddRow(2, 9, "RESERVATION_CONFIRMED", "Reservation confirmed", "b", "100", nil, fixedNow).
			AddRow(1, 9, "OFFER_FROZEN", "Offer frozen", "b", nil, fixedNow, fixedNow))

	got, err := newNotificationService(db).List(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].RefID)
	assert.Equal(t, "100", *got[0].RefID)
	assert.Nil(t, got[0].ReadAt)
	assert.Nil(t, got[1].RefID)
	assert.NotNil(t, got[1].ReadAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkRead(t *testing.T) {
	markRead := q("UPDATE notifications SET read_at=?")
	countQuery := q("SELECT COUNT(*) FROM notifications")

	t.Run("unread", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(markRead).WithArgs(fixedNow, 5, 9).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, newNotificationService(db).MarkRead(context.Background(), 5, 9))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("already read", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(markRead).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(countQuery).WithArgs(5, 9).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
		require.NoError(t, newNotificationService(db).MarkRead(context.Background(), 5, 9))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("someone else's", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(markRead).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(countQuery).WithArgs(5, 10).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		err := newNotificationService(db).MarkRead(context.Background(), 5, 10)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
