package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// StockRequest is an inspector's (or region's) ask for more stickers.
// RequesterID is nullable only so rows imported before it was mandatory load.
type StockRequest struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RequesterID         *uuid.UUID `gorm:"type:uuid;index"`
	RequesterName       string     `gorm:"not null"`
	RequesterType       string     `gorm:"type:varchar(20);not null"`
	Qty                 int        `gorm:"not null"`
	LotNumberPreference *string
	Status              string `gorm:"type:varchar(20);not null;default:'pending';index"`
	ApprovedBy          *uuid.UUID `gorm:"type:uuid"`
	ApprovedOnBehalfOf  *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt          *time.Time
	RejectedBy          *uuid.UUID `gorm:"type:uuid"`
	RejectionReason     *string
	FulfilledLotID      *uuid.UUID `gorm:"type:uuid"`
	HoldingID           *uuid.UUID `gorm:"type:uuid"`
	Notes               string
	CreatedAt           time.Time `gorm:"index"`
	UpdatedAt           time.Time
}

func (r *StockRequest) BeforeCreate(*gorm.DB) error {
	newID(&r.ID)
	return nil
}
