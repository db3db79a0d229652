package repository

import (
	"context"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockHoldingRepository is the per-holder ledger. There is one row per
// (lot, holder); Credit upserts it.
type StockHoldingRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.StockHolding, error)
	FindByLotAndHolder(ctx context.Context, tx *gorm.DB, lotID, holderID uuid.UUID) (*model.StockHolding, error)
	List(ctx context.Context, filter dto.HoldingFilter) ([]model.StockHolding, error)
	ListByHolder(ctx context.Context, holderID uuid.UUID) ([]model.StockHolding, error)

	// Credit adds qty to the holder's balance of lot, creating the row when absent.
	Credit(ctx context.Context, tx *gorm.DB, h *model.StockHolding, qty int) (*model.StockHolding, error)
	// Debit removes qty from the holding. ErrConditionFailed when the
	// unallocated remainder is smaller than qty.
	Debit(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error
	// Allocate consumes qty of the remainder without changing Qty.
	// ErrConditionFailed when the remainder is smaller than qty.
	Allocate(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error

	// SumByLot returns the total held quantity of a lot across all holders.
	SumByLot(ctx context.Context, lotID uuid.UUID) (int, error)
}

type stockHoldingRepo struct{ db *gorm.DB }

func NewStockHoldingRepository(db *gorm.DB) StockHoldingRepository {
	return &stockHoldingRepo{db: db}
}

func (r *stockHoldingRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.StockHolding, error) {
	var h model.StockHolding
	err := conn(ctx, r.db, tx).First(&h, "id = ?", id).Error
	return &h, err
}

func (r *stockHoldingRepo) FindByLotAndHolder(ctx context.Context, tx *gorm.DB, lotID, holderID uuid.UUID) (*model.StockHolding, error) {
	var h model.StockHolding
	err := conn(ctx, r.db, tx).Where("lot_id = ? AND holder_id = ?", lotID, holderID).First(&h).Error
	return &h, err
}

func (r *stockHoldingRepo) List(ctx context.Context, filter dto.HoldingFilter) ([]model.StockHolding, error) {
	var hs []model.StockHolding
	q := r.db.WithContext(ctx).Model(&model.StockHolding{})
	if filter.HolderID != "" {
		q = q.Where("holder_id = ?", filter.HolderID)
	}
	if filter.LotID != "" {
		q = q.Where("lot_id = ?", filter.LotID)
	}
	err := q.Order("lot_number ASC, issued_at ASC").Find(&hs).Error
	return hs, err
}

func (r *stockHoldingRepo) ListByHolder(ctx context.Context, holderID uuid.UUID) ([]model.StockHolding, error) {
	return r.List(ctx, dto.HoldingFilter{HolderID: holderID.String()})
}

func (r *stockHoldingRepo) Credit(ctx context.Context, tx *gorm.DB, h *model.StockHolding, qty int) (*model.StockHolding, error) {
	db := conn(ctx, r.db, tx)
	res := db.Model(&model.StockHolding{}).
		Where("lot_id = ? AND holder_id = ?", h.LotID, h.HolderID).
		Updates(map[string]interface{}{
			"qty":        gorm.Expr("qty + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		row := *h
		row.Qty = qty
		row.AllocatedQty = 0
		if row.IssuedAt.IsZero() {
			row.IssuedAt = time.Now()
		}
		if err := db.Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	}
	return r.FindByLotAndHolder(ctx, tx, h.LotID, h.HolderID)
}

func (r *stockHoldingRepo) Debit(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	res := conn(ctx, r.db, tx).Model(&model.StockHolding{}).
		Where("id = ? AND qty - allocated_qty >= ?", id, qty).
		Updates(map[string]interface{}{
			"qty":        gorm.Expr("qty - ?", qty),
			"updated_at": time.Now(),
		})
	return affected(res)
}

func (r *stockHoldingRepo) Allocate(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	res := conn(ctx, r.db, tx).Model(&model.StockHolding{}).
		Where("id = ? AND qty - allocated_qty >= ?", id, qty).
		Updates(map[string]interface{}{
			"allocated_qty": gorm.Expr("allocated_qty + ?", qty),
			"updated_at":    time.Now(),
		})
	return affected(res)
}

func (r *stockHoldingRepo) SumByLot(ctx context.Context, lotID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&model.StockHolding{}).
		Where("lot_id = ?", lotID).
		Select("COALESCE(SUM(qty), 0)").
		Scan(&total).Error
	return total, err
}
