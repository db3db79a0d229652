package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActionLog is the audit trail for approval-type actions. ActorID is always
// the authenticated user; OnBehalfOf is set when acting as a delegate.
type ActionLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Action     string     `gorm:"not null;index"` // "request.approve" | "job_order.reject" | ...
	EntityType string     `gorm:"not null"`
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ActorID    uuid.UUID  `gorm:"type:uuid;not null"`
	OnBehalfOf *uuid.UUID `gorm:"type:uuid"`
	Detail     datatypes.JSONMap
	CreatedAt  time.Time `gorm:"index"`
}

// DisplayActor is the user shown in the UI for this action.
func (a ActionLog) DisplayActor() uuid.UUID {
	if a.OnBehalfOf != nil {
		return *a.OnBehalfOf
	}
	return a.ActorID
}

func (a *ActionLog) BeforeCreate(*gorm.DB) error {
	newID(&a.ID)
	return nil
}
