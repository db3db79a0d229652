package repository

import (
	"context"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockRequestRepository interface {
	Create(ctx context.Context, tx *gorm.DB, r *model.StockRequest) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.StockRequest, error)
	List(ctx context.Context, filter dto.RequestFilter) ([]model.StockRequest, error)
	// Resolve writes the approval or rejection stamped on req. Only pending
	// rows are touched; ErrConditionFailed when req was already resolved.
	Resolve(ctx context.Context, tx *gorm.DB, req *model.StockRequest) error
}

type stockRequestRepo struct{ db *gorm.DB }

func NewStockRequestRepository(db *gorm.DB) StockRequestRepository {
	return &stockRequestRepo{db: db}
}

func (r *stockRequestRepo) Create(ctx context.Context, tx *gorm.DB, req *model.StockRequest) error {
	return conn(ctx, r.db, tx).Create(req).Error
}

func (r *stockRequestRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.StockRequest, error) {
	var req model.StockRequest
	err := conn(ctx, r.db, tx).First(&req, "id = ?", id).Error
	return &req, err
}

func (r *stockRequestRepo) List(ctx context.Context, filter dto.RequestFilter) ([]model.StockRequest, error) {
	var reqs []model.StockRequest
	q := r.db.WithContext(ctx).Model(&model.StockRequest{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.RequesterID != "" {
		q = q.Where("requester_id = ?", filter.RequesterID)
	}
	err := q.Order("created_at ASC").Find(&reqs).Error
	return reqs, err
}

func (r *stockRequestRepo) Resolve(ctx context.Context, tx *gorm.DB, req *model.StockRequest) error {
	res := conn(ctx, r.db, tx).Model(&model.StockRequest{}).
		Where("id = ? AND status = ?", req.ID, model.RequestPending).
		Updates(map[string]interface{}{
			"status":                req.Status,
			"requester_id":          req.RequesterID,
			"approved_by":           req.ApprovedBy,
			"approved_on_behalf_of": req.ApprovedOnBehalfOf,
			"approved_at":           req.ApprovedAt,
			"rejected_by":           req.RejectedBy,
			"rejection_reason":      req.RejectionReason,
			"fulfilled_lot_id":      req.FulfilledLotID,
			"holding_id":            req.HoldingID,
			"updated_at":            time.Now(),
		})
	return affected(res)
}
