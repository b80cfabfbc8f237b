package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

type notificationStore interface {
	ListByEmail(ctx context.Context, email string) ([]models.Notification, error)
	Delete(ctx context.Context, id int64, email string) error
}

// NotificationService exposes a user's notification log.
type NotificationService struct {
	store  notificationStore
	logger *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(store notificationStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, logger: logger}
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, email string) ([]models.Notification, error) {
	if email == "" {
		return nil, appErrors.ErrUnauthorized
	}
	list, err := s.store.ListByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list notifications")
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

// Delete removes one of the recipient's notifications.
func (s *NotificationService) Delete(ctx context.Context, id int64, email string) error {
	if err := s.store.Delete(ctx, id, email); err != nil {
		return storeError(err, "notification not found", "failed to delete notification")
	}
	return nil
}
