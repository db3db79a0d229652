package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transfer records stock moved between two holdings of the same lot.
type Transfer struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	LotID        uuid.UUID `gorm:"type:uuid;not null;index"`
	LotNumber    string    `gorm:"not null"`
	FromHolderID uuid.UUID `gorm:"type:uuid;not null;index"`
	ToHolderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Qty          int       `gorm:"not null"`
	Status       string    `gorm:"type:varchar(20);not null;default:'completed'"`
	Notes        string
	CreatedBy    uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time `gorm:"index"`
}

func (t *Transfer) BeforeCreate(*gorm.DB) error {
	newID(&t.ID)
	return nil
}
