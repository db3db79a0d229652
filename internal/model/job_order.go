package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Phase is the job-order lifecycle position.
type Phase string

const (
	PhaseAwaitingJobApproval    Phase = "awaiting_job_approval"
	PhaseApproved               Phase = "approved"
	PhaseInExecution            Phase = "in_execution"
	PhaseAwaitingReportApproval Phase = "awaiting_report_approval"
	PhasePaid                   Phase = "paid"
	PhaseRejected               Phase = "rejected"
)

// Terminal reports whether no further lifecycle transition is possible.
func (p Phase) Terminal() bool { return p == PhasePaid || p == PhaseRejected }

// LegacyStatus projects the phase onto the older five-value status vocabulary.
func (p Phase) LegacyStatus() string {
	switch p {
	case PhaseAwaitingJobApproval:
		return "Pending"
	case PhaseApproved:
		return "Approved"
	case PhaseInExecution, PhaseAwaitingReportApproval:
		return "Completed"
	case PhasePaid:
		return "Paid"
	case PhaseRejected:
		return "Rejected"
	}
	return ""
}

const (
	PaymentStatusNone      = "none"
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusFailed    = "failed"
)

// JobOrder is an inspection or training engagement for a client.
// OfflineID is set when the order was first captured by the field client and
// makes replays idempotent.
type JobOrder struct {
	ID               uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	OfflineID        *string                     `gorm:"uniqueIndex"`
	ClientID         uuid.UUID                   `gorm:"type:uuid;not null;index"`
	ServiceTypes     datatypes.JSONSlice[string] `gorm:"not null"`
	Phase            Phase                       `gorm:"type:varchar(32);not null;index"`
	AssignedTo       uuid.UUID                   `gorm:"type:uuid;not null;index"`
	CreatedBy        uuid.UUID                   `gorm:"type:uuid;not null"`
	Location         string
	ScheduledFor     *time.Time
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaymentStatus    string          `gorm:"type:varchar(20);not null;default:'none'"`
	ReportData       datatypes.JSON
	ReportedAt       *time.Time
	PhotoKey         *string
	ApprovedBy       *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt       *time.Time
	ReportApprovedAt *time.Time
	RejectedBy       *uuid.UUID `gorm:"type:uuid"`
	RejectionReason  *string
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time

	StickerAllocations []StickerAllocation `gorm:"foreignKey:JobOrderID"`
	Tags               []Tag               `gorm:"foreignKey:JobOrderID"`
	Payments           []Payment           `gorm:"foreignKey:JobOrderID"`
	Certificate        *Certificate        `gorm:"foreignKey:JobOrderID"`
}

func (j *JobOrder) BeforeCreate(*gorm.DB) error {
	newID(&j.ID)
	return nil
}

// StickerAllocation consumes one unit of a holding for a job order.
type StickerAllocation struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobOrderID     uuid.UUID `gorm:"type:uuid;not null;index"`
	StockHoldingID uuid.UUID `gorm:"type:uuid;not null;index"`
	LotNumber      string    `gorm:"not null"`
	StickerNumber  *string
	Qty            int       `gorm:"not null;default:1"`
	AllocatedBy    uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt      time.Time
}

func (a *StickerAllocation) BeforeCreate(*gorm.DB) error {
	newID(&a.ID)
	return nil
}
