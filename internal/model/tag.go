package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TagAvailable = "available"
	TagAllocated = "allocated"
	TagUsed      = "used"
	TagRemoved   = "removed"
)

// Tag is a serialized compliance tag. Status only moves forward:
// available -> allocated -> used, and available|allocated -> removed.
type Tag struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TagNumber     string     `gorm:"uniqueIndex;not null"`
	Status        string     `gorm:"type:varchar(20);not null;default:'available';index"`
	JobOrderID    *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt     time.Time
	AllocatedAt   *time.Time
	UsedAt        *time.Time
	RemovedAt     *time.Time
	RemovalReason *string
}

func (t *Tag) BeforeCreate(*gorm.DB) error {
	newID(&t.ID)
	return nil
}
