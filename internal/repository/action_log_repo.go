package repository

import (
	"context"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActionLogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, a *model.ActionLog) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]model.ActionLog, error)
}

type actionLogRepo struct{ db *gorm.DB }

func NewActionLogRepository(db *gorm.DB) ActionLogRepository { return &actionLogRepo{db: db} }

func (r *actionLogRepo) Create(ctx context.Context, tx *gorm.DB, a *model.ActionLog) error {
	return conn(ctx, r.db, tx).Create(a).Error
}

func (r *actionLogRepo) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]model.ActionLog, error) {
	var logs []model.ActionLog
	err := r.db.WithContext(ctx).Where("entity_id = ?", entityID).Order("created_at ASC").Find(&logs).Error
	return logs, err
}
