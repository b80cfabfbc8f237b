package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-book-exchange/internal/models"
)

// NotificationRepository reads and prunes user notifications. Inserts only
// happen inside settlement transactions.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ListByEmail returns the recipient's notifications, newest first.
func (r *NotificationRepository) ListByEmail(ctx context.Context, email string) ([]models.Notification, error) {
	query := r.db.Rebind(`SELECT id, user_email, notification, notification_generated_time FROM user_notification
	WHERE user_email = ? ORDER BY notification_generated_time DESC, id DESC`)
	var list []models.Notification
	if err := r.db.SelectContext(ctx, &list, query, email); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// Delete removes one notification owned by email; sql.ErrNoRows otherwise.
func (r *NotificationRepository) Delete(ctx context.Context, id int64, email string) error {
	return execOne(ctx, r.db, "delete notification", `DELETE FROM user_notification WHERE id = ? AND user_email = ?`, id, email)
}
