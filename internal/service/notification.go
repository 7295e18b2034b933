package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

const notificationLimit = 50

// NotificationService is the read side of the notification sink.
type NotificationService struct {
	repo *repository.NotificationRepo
	now  func() time.Time
}

func NewNotificationService(repo *repository.NotificationRepo) *NotificationService {
	return &NotificationService{repo: repo, now: time.Now}
}

// List returns the caller's newest notifications.
func (s *NotificationService) List(ctx context.Context, accountID uint64) ([]model.Notification, error) {
	return s.repo.ListByAccount(ctx, accountID, notificationLimit)
}

// MarkRead marks one of the caller's notifications as read.  Someone
// else's notification is reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, id, accountID uint64) error {
	err := s.repo.MarkRead(ctx, id, accountID, s.now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
