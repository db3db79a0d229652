package repository

import (
	"context"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"gorm.io/gorm"
)

type TransferRepository interface {
	Create(ctx context.Context, tx *gorm.DB, t *model.Transfer) error
	List(ctx context.Context, filter dto.TransferFilter) ([]model.Transfer, error)
}

type transferRepo struct{ db *gorm.DB }

func NewTransferRepository(db *gorm.DB) TransferRepository { return &transferRepo{db: db} }

func (r *transferRepo) Create(ctx context.Context, tx *gorm.DB, t *model.Transfer) error {
	return conn(ctx, r.db, tx).Create(t).Error
}

func (r *transferRepo) List(ctx context.Context, filter dto.TransferFilter) ([]model.Transfer, error) {
	var ts []model.Transfer
	q := r.db.WithContext(ctx).Model(&model.Transfer{})
	if filter.LotID != "" {
		q = q.Where("lot_id = ?", filter.LotID)
	}
	if filter.HolderID != "" {
		q = q.Where("from_holder_id = ? OR to_holder_id = ?", filter.HolderID, filter.HolderID)
	}
	err := q.Order("created_at DESC").Find(&ts).Error
	return ts, err
}
