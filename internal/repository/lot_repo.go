package repository

import (
	"context"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LotRepository persists sticker lots. Lists are always in creation order,
// which is the fallback order used by request approval.
type LotRepository interface {
	Create(ctx context.Context, tx *gorm.DB, l *model.Lot) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Lot, error)
	FindByNumber(ctx context.Context, tx *gorm.DB, lotNumber string) (*model.Lot, error)
	List(ctx context.Context, status string) ([]model.Lot, error)
	// ListAvailable returns active lots with at least minQty available.
	ListAvailable(ctx context.Context, tx *gorm.DB, minQty int) ([]model.Lot, error)

	// Debit moves qty from available to issued, flipping the lot to depleted
	// when nothing is left. Returns ErrConditionFailed when the lot is not
	// active or has less than qty available.
	Debit(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type lotRepo struct{ db *gorm.DB }

func NewLotRepository(db *gorm.DB) LotRepository { return &lotRepo{db: db} }

func (r *lotRepo) DB() *gorm.DB { return r.db }

func (r *lotRepo) Create(ctx context.Context, tx *gorm.DB, l *model.Lot) error {
	return conn(ctx, r.db, tx).Create(l).Error
}

func (r *lotRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Lot, error) {
	var l model.Lot
	err := conn(ctx, r.db, tx).First(&l, "id = ?", id).Error
	return &l, err
}

func (r *lotRepo) FindByNumber(ctx context.Context, tx *gorm.DB, lotNumber string) (*model.Lot, error) {
	var l model.Lot
	err := conn(ctx, r.db, tx).Where("lot_number = ?", lotNumber).First(&l).Error
	return &l, err
}

func (r *lotRepo) List(ctx context.Context, status string) ([]model.Lot, error) {
	var lots []model.Lot
	q := r.db.WithContext(ctx).Model(&model.Lot{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at ASC, lot_number ASC").Find(&lots).Error
	return lots, err
}

func (r *lotRepo) ListAvailable(ctx context.Context, tx *gorm.DB, minQty int) ([]model.Lot, error) {
	var lots []model.Lot
	err := conn(ctx, r.db, tx).
		Where("status = ? AND available_qty >= ?", model.LotActive, minQty).
		Order("created_at ASC, lot_number ASC").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) Debit(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	// SET expressions read the pre-update row on both postgres and sqlite.
	res := conn(ctx, r.db, tx).Model(&model.Lot{}).
		Where("id = ? AND status = ? AND available_qty >= ?", id, model.LotActive, qty).
		Updates(map[string]interface{}{
			"issued_qty":    gorm.Expr("issued_qty + ?", qty),
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"status":        gorm.Expr("CASE WHEN available_qty - ? <= 0 THEN ? ELSE status END", qty, model.LotDepleted),
			"updated_at":    time.Now(),
		})
	return affected(res)
}
