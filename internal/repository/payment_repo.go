package repository

import (
	"context"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, p *model.Payment) error
	// FindPending returns the job order's pending payment, or gorm.ErrRecordNotFound.
	FindPending(ctx context.Context, tx *gorm.DB, jobOrderID uuid.UUID) (*model.Payment, error)
	ListByJobOrder(ctx context.Context, jobOrderID uuid.UUID) ([]model.Payment, error)
	// Resolve writes the confirmation or failure stamped on p when it is still
	// pending. ErrConditionFailed otherwise.
	Resolve(ctx context.Context, tx *gorm.DB, p *model.Payment) error
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) Create(ctx context.Context, tx *gorm.DB, p *model.Payment) error {
	return conn(ctx, r.db, tx).Create(p).Error
}

func (r *paymentRepo) FindPending(ctx context.Context, tx *gorm.DB, jobOrderID uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := conn(ctx, r.db, tx).
		Where("job_order_id = ? AND status = ?", jobOrderID, model.PaymentPending).
		First(&p).Error
	return &p, err
}

func (r *paymentRepo) ListByJobOrder(ctx context.Context, jobOrderID uuid.UUID) ([]model.Payment, error) {
	var ps []model.Payment
	err := r.db.WithContext(ctx).Where("job_order_id = ?", jobOrderID).Order("created_at ASC").Find(&ps).Error
	return ps, err
}

func (r *paymentRepo) Resolve(ctx context.Context, tx *gorm.DB, p *model.Payment) error {
	res := conn(ctx, r.db, tx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", p.ID, model.PaymentPending).
		Updates(map[string]interface{}{
			"status":         p.Status,
			"confirmed_by":   p.ConfirmedBy,
			"confirmed_at":   p.ConfirmedAt,
			"failure_reason": p.FailureReason,
			"updated_at":     time.Now(),
		})
	return affected(res)
}
