package repository

import (
	"context"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobOrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, j *model.JobOrder) error
	// FindByID loads the job order with allocations, tags, payments and certificate.
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.JobOrder, error)
	FindByOfflineID(ctx context.Context, offlineID string) (*model.JobOrder, error)
	List(ctx context.Context, filter dto.JobOrderFilter) ([]model.JobOrder, int64, error)

	// UpdateLifecycle persists phase, payment status and the approval/report
	// columns of j when the stored phase is one of from.
	// ErrConditionFailed when the phase moved underneath the caller.
	UpdateLifecycle(ctx context.Context, tx *gorm.DB, j *model.JobOrder, from ...model.Phase) error
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	SetPhotoKey(ctx context.Context, id uuid.UUID, key string) error

	CreateAllocation(ctx context.Context, tx *gorm.DB, a *model.StickerAllocation) error

	DB() *gorm.DB
}

type jobOrderRepo struct{ db *gorm.DB }

func NewJobOrderRepository(db *gorm.DB) JobOrderRepository { return &jobOrderRepo{db: db} }

func (r *jobOrderRepo) DB() *gorm.DB { return r.db }

func (r *jobOrderRepo) Create(ctx context.Context, tx *gorm.DB, j *model.JobOrder) error {
	return conn(ctx, r.db, tx).Omit("StickerAllocations", "Tags", "Payments", "Certificate").Create(j).Error
}

func (r *jobOrderRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.JobOrder, error) {
	var j model.JobOrder
	err := conn(ctx, r.db, tx).
		Preload("StickerAllocations").
		Preload("Tags").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Certificate").
		First(&j, "id = ?", id).Error
	return &j, err
}

func (r *jobOrderRepo) FindByOfflineID(ctx context.Context, offlineID string) (*model.JobOrder, error) {
	var j model.JobOrder
	err := r.db.WithContext(ctx).Where("offline_id = ?", offlineID).First(&j).Error
	if err != nil {
		return &j, err
	}
	return r.FindByID(ctx, nil, j.ID)
}

func (r *jobOrderRepo) List(ctx context.Context, filter dto.JobOrderFilter) ([]model.JobOrder, int64, error) {
	var jobs []model.JobOrder
	var total int64

	q := r.db.WithContext(ctx).Model(&model.JobOrder{})
	if filter.Phase != "" {
		q = q.Where("phase = ?", filter.Phase)
	}
	if filter.AssignedTo != "" {
		q = q.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("StickerAllocations").Preload("Tags").Preload("Payments").Preload("Certificate").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&jobs).Error
	return jobs, total, err
}

func (r *jobOrderRepo) UpdateLifecycle(ctx context.Context, tx *gorm.DB, j *model.JobOrder, from ...model.Phase) error {
	res := conn(ctx, r.db, tx).Model(&model.JobOrder{}).
		Where("id = ? AND phase IN ?", j.ID, from).
		Updates(map[string]interface{}{
			"phase":              j.Phase,
			"payment_status":     j.PaymentStatus,
			"report_data":        j.ReportData,
			"reported_at":        j.ReportedAt,
			"approved_by":        j.ApprovedBy,
			"approved_at":        j.ApprovedAt,
			"report_approved_at": j.ReportApprovedAt,
			"rejected_by":        j.RejectedBy,
			"rejection_reason":   j.RejectionReason,
			"updated_at":         time.Now(),
		})
	return affected(res)
}

func (r *jobOrderRepo) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	return conn(ctx, r.db, tx).Model(&model.JobOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"payment_status": status, "updated_at": time.Now()}).Error
}

func (r *jobOrderRepo) SetPhotoKey(ctx context.Context, id uuid.UUID, key string) error {
	return r.db.WithContext(ctx).Model(&model.JobOrder{}).Where("id = ?", id).Update("photo_key", key).Error
}

func (r *jobOrderRepo) CreateAllocation(ctx context.Context, tx *gorm.DB, a *model.StickerAllocation) error {
	return conn(ctx, r.db, tx).Create(a).Error
}
