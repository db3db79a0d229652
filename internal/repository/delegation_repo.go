package repository

import (
	"context"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DelegationRepository interface {
	// ListByDelegator returns all delegates ordered by priority.
	ListByDelegator(ctx context.Context, delegatorID uuid.UUID) ([]model.Delegation, error)
	FindActive(ctx context.Context, delegatorID, delegateID uuid.UUID) (*model.Delegation, error)
	// Replace swaps the delegator's whole delegate list.
	Replace(ctx context.Context, tx *gorm.DB, delegatorID uuid.UUID, ds []model.Delegation) error

	DB() *gorm.DB
}

type delegationRepo struct{ db *gorm.DB }

func NewDelegationRepository(db *gorm.DB) DelegationRepository { return &delegationRepo{db: db} }

func (r *delegationRepo) DB() *gorm.DB { return r.db }

func (r *delegationRepo) ListByDelegator(ctx context.Context, delegatorID uuid.UUID) ([]model.Delegation, error) {
	var ds []model.Delegation
	err := r.db.WithContext(ctx).Preload("Delegate").
		Where("delegator_id = ?", delegatorID).
		Order("priority ASC").
		Find(&ds).Error
	return ds, err
}

func (r *delegationRepo) FindActive(ctx context.Context, delegatorID, delegateID uuid.UUID) (*model.Delegation, error) {
	var d model.Delegation
	err := r.db.WithContext(ctx).
		Where("delegator_id = ? AND delegate_id = ? AND active = ?", delegatorID, delegateID, true).
		First(&d).Error
	return &d, err
}

func (r *delegationRepo) Replace(ctx context.Context, tx *gorm.DB, delegatorID uuid.UUID, ds []model.Delegation) error {
	db := conn(ctx, r.db, tx)
	if err := db.Where("delegator_id = ?", delegatorID).Delete(&model.Delegation{}).Error; err != nil {
		return err
	}
	if len(ds) == 0 {
		return nil
	}
	return db.Omit("Delegate").Create(&ds).Error
}
