package queue

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newSink(db *sql.DB) *Sink {
	return NewSink(repository.NewNotificationRepo(db), repository.NewConversationRepo(db), zap.NewNop())
}

type recordingPublisher struct {
	events []Event
	fail   map[uint64]error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	if err := p.fail[ev.ID]; err != nil {
		return err
	}
	p.events = append(p.events, ev)
	return nil
}

// captureArg matches any []byte argument and keeps a copy of it.
type captureArg struct{ got *[]byte }

func (c captureArg) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if ok {
		*c.got = append([]byte(nil), b...)
	}
	return ok
}

func TestOutboxNotifyTx_DedupesRecipients(t *testing.T) {
	db, mock := setupMockDB(t)
	ob := NewOutbox(repository.NewOutboxRepo(db))
	ob.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	var payload []byte
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(KindNotify, captureArg{got: &payload}).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = ob.NotifyTx(context.Background(), tx, []uint64{4, 5, 4, 0}, Notice{Type: "OFFER_FROZEN", Title: "t", Body: "b", RefID: "9"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	ev, err := DecodeEvent(payload)
	require.NoError(t, err)
	require.Len(t, ev.Notifications, 2)
	assert.Equal(t, uint64(4), ev.Notifications[0].AccountID)
	assert.Equal(t, uint64(5), ev.Notifications[1].AccountID)
	require.NotNil(t, ev.Notifications[0].RefID)
	assert.Equal(t, "9", *ev.Notifications[0].RefID)
	assert.Equal(t, 2025, ev.CreatedAt.Year())
}

func TestOutboxNotifyTx_NoRecipients(t *testing.T) {
	db, mock := setupMockDB(t)
	ob := NewOutbox(repository.NewOutboxRepo(db))

	mock.ExpectBegin()
	mock.ExpectCommit()
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, ob.NotifyTx(context.Background(), tx, nil, Notice{Type: "X"}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkDeliver_Notify(t *testing.T) {
	db, mock := setupMockDB(t)
	sink := newSink(db)
	ref := "42"

	mock.ExpectExec("INSERT IGNORE INTO notifications").
		WithArgs(uint64(7), uint64(1), "OFFER_FROZEN", "Offer frozen", "body", "42").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// redelivery of the same event for the second account is ignored by the
	// unique key and reports zero rows
	mock.ExpectExec("INSERT IGNORE INTO notifications").
		WithArgs(uint64(7), uint64(2), "OFFER_FROZEN", "Offer frozen", "body", "42").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := sink.Deliver(context.Background(), Event{
		ID:   7,
		Kind: KindNotify,
		Notifications: []NotificationMessage{
			{AccountID: 1, Type: "OFFER_FROZEN", Title: "Offer frozen", Body: "body", RefID: &ref},
			{AccountID: 2, Type: "OFFER_FROZEN", Title: "Offer frozen", Body: "body", RefID: &ref},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkDeliver_Conversation(t *testing.T) {
	db, mock := setupMockDB(t)
	sink := newSink(db)

	mock.ExpectExec("INSERT IGNORE INTO conversations").
		WithArgs(uint64(3), uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := sink.Deliver(context.Background(), Event{
		ID: 8, Kind: KindConversationEnsure,
		Conversation: &ConversationMessage{PharmacyID: 3, AccountID: 9},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkDeliver_UnknownKind(t *testing.T) {
	db, _ := setupMockDB(t)
	err := newSink(db).Deliver(context.Background(), Event{ID: 1, Kind: "bogus"})
	assert.Error(t, err)
}

func TestConsumerHandle_Malformed(t *testing.T) {
	db, _ := setupMockDB(t)
	c := NewConsumer("", newSink(db), zap.NewNop())

	err := c.Handle(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMalformed))

	err = c.Handle(context.Background(), []byte(`{"id":1,"kind":"conversation.ensure"}`))
	assert.True(t, errors.Is(err, errMalformed))
}

func TestConsumerHandle_Delivers(t *testing.T) {
	db, mock := setupMockDB(t)
	c := NewConsumer("", newSink(db), zap.NewNop())

	mock.ExpectExec("INSERT IGNORE INTO conversations").
		WithArgs(uint64(3), uint64(9)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := c.Handle(context.Background(), []byte(`{"id":5,"kind":"conversation.ensure","conversation":{"pharmacy_id":3,"account_id":9}}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// settled counts how deliveries were acknowledged.
type settled struct{ acked, requeued, dropped int }

func (s *settled) Ack(uint64, bool) error { s.acked++; return nil }

func (s *settled) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		s.requeued++
	} else {
		s.dropped++
	}
	return nil
}

func (s *settled) Reject(_ uint64, requeue bool) error { return s.Nack(0, false, requeue) }

func TestConsumerAck_RequeuesUntilDelivered(t *testing.T) {
	db, _ := setupMockDB(t)
	c := NewConsumer("", newSink(db), zap.NewNop())
	c.retryDelay = time.Millisecond
	ctx := context.Background()
	transient := errors.New("deadlock found")

	var got settled
	c.ack(ctx, amqp.Delivery{Acknowledger: &got, MessageId: "5"}, transient)
	c.ack(ctx, amqp.Delivery{Acknowledger: &got, MessageId: "5", Redelivered: true}, transient)
	c.ack(ctx, amqp.Delivery{Acknowledger: &got, MessageId: "5", Redelivered: true}, transient)
	assert.Equal(t, settled{requeued: 3}, got)

	c.ack(ctx, amqp.Delivery{Acknowledger: &got, MessageId: "5", Redelivered: true}, nil)
	assert.Equal(t, 1, got.acked)

	c.ack(ctx, amqp.Delivery{Acknowledger: &got, MessageId: "6"}, fmt.Errorf("%w: bad json", errMalformed))
	assert.Equal(t, 1, got.dropped)
}

func outboxRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "kind", "payload", "attempts", "created_at"})
}

func TestRelayTick_DispatchesAndRetries(t *testing.T) {
	db, mock := setupMockDB(t)
	pub := &recordingPublisher{fail: map[uint64]error{2: errors.New("broker down")}}
	relay := NewRelay(repository.NewOutboxRepo(db), pub, zap.NewNop(), time.Second, 10)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").
		WithArgs(repository.MaxOutboxAttempts, 10).
		WillReturnRows(outboxRows().
			AddRow(1, KindConversationEnsure, []byte(`{"conversation":{"pharmacy_id":3,"account_id":9}}`), 0, created).
			AddRow(2, KindNotify, []byte(`{"notifications":[]}`), 1, created).
			AddRow(3, KindNotify, []byte(`not json`), 0, created))
	mock.ExpectExec("UPDATE outbox_events SET dispatched_at").
		WithArgs(sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outbox_events SET attempts").
		WithArgs("broker down", uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outbox_events SET attempts").
		WithArgs(sqlmock.AnyArg(), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := relay.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.events, 1)
	assert.Equal(t, uint64(1), pub.events[0].ID)
	assert.Equal(t, KindConversationEnsure, pub.events[0].Kind)
	assert.Equal(t, uint64(9), pub.events[0].Conversation.AccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayTick_DirectPublisherReachesSink(t *testing.T) {
	db, mock := setupMockDB(t)
	relay := NewRelay(repository.NewOutboxRepo(db), NewDirectPublisher(newSink(db)), zap.NewNop(), time.Second, 5)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").
		WillReturnRows(outboxRows().
			AddRow(4, KindNotify, []byte(`{"notifications":[{"account_id":6,"type":"RESERVATION_SUBMITTED","title":"New reservation","body":"b"}]}`), 0, time.Now()))
	mock.ExpectExec("INSERT IGNORE INTO notifications").
		WithArgs(uint64(4), uint64(6), "RESERVATION_SUBMITTED", "New reservation", "b", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE outbox_events SET dispatched_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := relay.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayTick_ClaimFailureRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	relay := NewRelay(repository.NewOutboxRepo(db), &recordingPublisher{}, zap.NewNop(), time.Second, 5)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").WillReturnError(errors.New("db gone"))
	mock.ExpectRollback()

	_, err := relay.Tick(context.Background())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
