package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delegation lets DelegateID act for DelegatorID. Priority 1 is the primary
// delegate; priorities are unique per delegator.
type Delegation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DelegatorID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_delegation_priority;uniqueIndex:idx_delegation_pair"`
	DelegateID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_delegation_pair"`
	Priority    int       `gorm:"not null;uniqueIndex:idx_delegation_priority"`
	Active      bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Delegate *User `gorm:"foreignKey:DelegateID"`
}

func (d *Delegation) BeforeCreate(*gorm.DB) error {
	newID(&d.ID)
	return nil
}
