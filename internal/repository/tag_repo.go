package repository

import (
	"context"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TagRepository interface {
	Create(ctx context.Context, tx *gorm.DB, t *model.Tag) error
	FindByNumber(ctx context.Context, tx *gorm.DB, tagNumber string) (*model.Tag, error)
	List(ctx context.Context, status string) ([]model.Tag, error)
	ListByJobOrder(ctx context.Context, jobOrderID uuid.UUID) ([]model.Tag, error)
	// Transition persists t's status fields when the stored status is one of
	// from. ErrConditionFailed otherwise.
	Transition(ctx context.Context, tx *gorm.DB, t *model.Tag, from ...string) error
}

type tagRepo struct{ db *gorm.DB }

func NewTagRepository(db *gorm.DB) TagRepository { return &tagRepo{db: db} }

func (r *tagRepo) Create(ctx context.Context, tx *gorm.DB, t *model.Tag) error {
	return conn(ctx, r.db, tx).Create(t).Error
}

func (r *tagRepo) FindByNumber(ctx context.Context, tx *gorm.DB, tagNumber string) (*model.Tag, error) {
	var t model.Tag
	err := conn(ctx, r.db, tx).Where("tag_number = ?", tagNumber).First(&t).Error
	return &t, err
}

func (r *tagRepo) List(ctx context.Context, status string) ([]model.Tag, error) {
	var tags []model.Tag
	q := r.db.WithContext(ctx).Model(&model.Tag{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("tag_number ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepo) ListByJobOrder(ctx context.Context, jobOrderID uuid.UUID) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).Where("job_order_id = ?", jobOrderID).Order("tag_number ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepo) Transition(ctx context.Context, tx *gorm.DB, t *model.Tag, from ...string) error {
	res := conn(ctx, r.db, tx).Model(&model.Tag{}).
		Where("id = ? AND status IN ?", t.ID, from).
		Updates(map[string]interface{}{
			"status":         t.Status,
			"job_order_id":   t.JobOrderID,
			"allocated_at":   t.AllocatedAt,
			"used_at":        t.UsedAt,
			"removed_at":     t.RemovedAt,
			"removal_reason": t.RemovalReason,
		})
	return affected(res)
}
