package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LotActive   = "active"
	LotDepleted = "depleted"
	LotArchived = "archived"
)

// Lot is a batch of stickers of one size. AvailableQty is kept equal to
// TotalQty - IssuedQty by the conditional debit in LotRepository.
type Lot struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	LotNumber    string    `gorm:"uniqueIndex;not null"`
	Size         string    `gorm:"not null"`
	TotalQty     int       `gorm:"not null"`
	IssuedQty    int       `gorm:"not null;default:0"`
	AvailableQty int       `gorm:"not null"`
	Status       string    `gorm:"type:varchar(20);not null;default:'active';index"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

func (l *Lot) BeforeCreate(*gorm.DB) error {
	newID(&l.ID)
	return nil
}
