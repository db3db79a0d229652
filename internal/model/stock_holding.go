package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	HolderRegion    = "region"
	HolderInspector = "inspector"
)

// StockHolding is the quantity of one lot held by one region or inspector.
// AllocatedQty counts units already consumed by sticker allocations; the
// remaining balance is Qty - AllocatedQty.
type StockHolding struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	LotID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_holding_lot_holder"`
	LotNumber    string    `gorm:"not null;index"`
	HolderID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_holding_lot_holder;index"`
	HolderName   string
	HolderType   string `gorm:"type:varchar(20);not null"`
	Qty          int    `gorm:"not null;default:0"`
	AllocatedQty int    `gorm:"not null;default:0"`
	IssuedAt     time.Time
	UpdatedAt    time.Time

	Lot *Lot `gorm:"foreignKey:LotID"`
}

// Remaining is the balance still available for allocation or transfer.
func (h StockHolding) Remaining() int { return h.Qty - h.AllocatedQty }

func (h *StockHolding) BeforeCreate(*gorm.DB) error {
	newID(&h.ID)
	return nil
}
