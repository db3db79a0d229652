package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Certificate is issued once when a job order's payment is confirmed.
type Certificate struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobOrderID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	CertificateNumber string    `gorm:"uniqueIndex;not null"`
	VerificationCode  string    `gorm:"uniqueIndex;not null"`
	IssueDate         time.Time `gorm:"not null"`
	ExpiryDate        time.Time `gorm:"not null"`
	Status            string    `gorm:"type:varchar(20);not null;default:'valid'"`
	CreatedAt         time.Time
}

func (c *Certificate) BeforeCreate(*gorm.DB) error {
	newID(&c.ID)
	return nil
}
