package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentFailed    = "failed"
)

// Payment is one settlement attempt for a job order. At most one row per job
// is pending at any time.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	JobOrderID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	Method        string          `gorm:"type:varchar(30);not null"` // "invoice" | "cash" | "transfer" | "card" | "mobile_money"
	SubmittedBy   uuid.UUID       `gorm:"type:uuid;not null"`
	ConfirmedBy   *uuid.UUID      `gorm:"type:uuid"`
	ConfirmedAt   *time.Time
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	newID(&p.ID)
	return nil
}
