package repository

import (
	"context"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error)
	// UpdateDelivery persists the e-mail status, attempt count and retry schedule.
	UpdateDelivery(ctx context.Context, n *model.Notification) error
	// ListDueForRetry returns failed deliveries whose next_retry_at has passed.
	ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]model.Notification, error)
}

type notificationRepo struct{ db *gorm.DB }

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error {
	return conn(ctx, r.db, tx).Create(n).Error
}

func (r *notificationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	return &n, err
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	var ns []model.Notification
	err := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Order("created_at DESC").Limit(200).Find(&ns).Error
	return ns, err
}

func (r *notificationRepo) UpdateDelivery(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", n.ID).
		Updates(map[string]interface{}{
			"email_status":  n.EmailStatus,
			"attempts":      n.Attempts,
			"next_retry_at": n.NextRetryAt,
			"last_error":    n.LastError,
		}).Error
}

func (r *notificationRepo) ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	var ns []model.Notification
	err := r.db.WithContext(ctx).
		Where("email_status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.EmailFailed, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&ns).Error
	return ns, err
}
