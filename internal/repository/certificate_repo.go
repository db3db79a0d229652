package repository

import (
	"context"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CertificateRepository interface {
	Create(ctx context.Context, tx *gorm.DB, c *model.Certificate) error
	FindByJobOrder(ctx context.Context, jobOrderID uuid.UUID) (*model.Certificate, error)
	FindByCode(ctx context.Context, code string) (*model.Certificate, error)
}

type certificateRepo struct{ db *gorm.DB }

func NewCertificateRepository(db *gorm.DB) CertificateRepository { return &certificateRepo{db: db} }

func (r *certificateRepo) Create(ctx context.Context, tx *gorm.DB, c *model.Certificate) error {
	return conn(ctx, r.db, tx).Create(c).Error
}

func (r *certificateRepo) FindByJobOrder(ctx context.Context, jobOrderID uuid.UUID) (*model.Certificate, error) {
	var c model.Certificate
	err := r.db.WithContext(ctx).Where("job_order_id = ?", jobOrderID).First(&c).Error
	return &c, err
}

func (r *certificateRepo) FindByCode(ctx context.Context, code string) (*model.Certificate, error) {
	var c model.Certificate
	err := r.db.WithContext(ctx).Where("verification_code = ?", code).First(&c).Error
	return &c, err
}
