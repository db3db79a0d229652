package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles recognised by the API.
const (
	RoleClient     = "client"
	RoleInspector  = "inspector"
	RoleTrainer    = "trainer"
	RoleSupervisor = "supervisor"
	RoleAccountant = "accountant"
	RoleManager    = "manager"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleClient, RoleInspector, RoleTrainer, RoleSupervisor, RoleAccountant, RoleManager:
		return true
	}
	return false
}

// User stores system users with role-based access.
// CanCreateJobOrders is only meaningful for inspectors.
type User struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username           string    `gorm:"uniqueIndex;not null"`
	Name               string    `gorm:"index;not null"`
	Email              *string
	PasswordHash       string `gorm:"not null"`
	Role               string `gorm:"type:varchar(20);not null;index"`
	CanCreateJobOrders bool   `gorm:"not null;default:false"`
	Active             bool   `gorm:"not null;default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error {
	newID(&u.ID)
	return nil
}
