package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EmailSkipped = "skipped"
	EmailQueued  = "queued"
	EmailSent    = "sent"
	EmailFailed  = "failed"
)

// Notification is an in-app message, optionally mirrored by e-mail.
type Notification struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Kind        string     `gorm:"not null"` // "job_order.rejected" | "payment.rejected" | "certificate.issued"
	Subject     string     `gorm:"not null"`
	Body        string     `gorm:"type:text"`
	JobOrderID  *uuid.UUID `gorm:"type:uuid"`
	EmailStatus string     `gorm:"type:varchar(20);not null;default:'skipped';index"`
	Attempts    int        `gorm:"not null;default:0"`
	NextRetryAt *time.Time
	LastError   *string
	CreatedAt   time.Time `gorm:"index"`
	ReadAt      *time.Time
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	newID(&n.ID)
	return nil
}
