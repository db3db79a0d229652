package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Filter / List ──────────────────────────────────────────────────────────

// JobOrderFilter is bound from query string of GET /v1/job-orders.
type JobOrderFilter struct {
	Phase      string `form:"phase"       validate:"omitempty,oneof=awaiting_job_approval approved in_execution awaiting_report_approval paid rejected"`
	AssignedTo string `form:"assigned_to" validate:"omitempty,uuid"`
	ClientID   string `form:"client_id"   validate:"omitempty,uuid"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type JobOrderListResponse struct {
	Data  []JobOrderResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateJobOrderRequest struct {
	ClientID     string          `json:"client_id"     validate:"required,uuid"`
	ServiceTypes []string        `json:"service_types" validate:"required,min=1,dive,required"`
	// AssignedTo defaults to the creating inspector.
	AssignedTo   string          `json:"assigned_to"   validate:"omitempty,uuid"`
	Location     string          `json:"location"      validate:"omitempty,max=200"`
	ScheduledFor *time.Time      `json:"scheduled_for"`
	Amount       decimal.Decimal `json:"amount"        validate:"min=0"`
	// StockHoldingID allocates one sticker from the given holding in the same transaction.
	StockHoldingID *string `json:"stock_holding_id" validate:"omitempty,uuid"`
	StickerNumber  *string `json:"sticker_number"   validate:"omitempty,max=64"`
	TagNumber      *string `json:"tag_number"       validate:"omitempty,max=64"`
	// PhotoBase64 is an optional site photo, stored in object storage.
	PhotoBase64 *string `json:"photo_base64"`
}

// OfflineJobOrderRequest is a job order captured by the field client.
type OfflineJobOrderRequest struct {
	OfflineID string `json:"offline_id" validate:"required,min=8,max=64"`
	CreateJobOrderRequest
}

// SyncBatchRequest replays several offline job orders in FIFO order.
type SyncBatchRequest struct {
	JobOrders []OfflineJobOrderRequest `json:"job_orders" validate:"required,min=1,dive"`
}

type RejectJobOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

type SubmitReportRequest struct {
	ReportData map[string]interface{} `json:"report_data" validate:"required"`
}

type SubmitPaymentRequest struct {
	Method string `json:"method" validate:"required,oneof=invoice cash transfer card mobile_money"`
	// Amount defaults to the job order amount.
	Amount *decimal.Decimal `json:"amount"`
}

type RejectPaymentRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PaymentResponse struct {
	ID            string          `json:"id"`
	JobOrderID    string          `json:"job_order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Method        string          `json:"method"`
	SubmittedBy   string          `json:"submitted_by"`
	ConfirmedBy   *string         `json:"confirmed_by"`
	ConfirmedAt   *string         `json:"confirmed_at"`
	FailureReason *string         `json:"failure_reason"`
	CreatedAt     string          `json:"created_at"`
}

type CertificateResponse struct {
	ID                string `json:"id"`
	JobOrderID        string `json:"job_order_id"`
	CertificateNumber string `json:"certificate_number"`
	VerificationCode  string `json:"verification_code"`
	IssueDate         string `json:"issue_date"`
	ExpiryDate        string `json:"expiry_date"`
	Status            string `json:"status"`
	Valid             bool   `json:"valid"`
}

type JobOrderResponse struct {
	ID                 string                      `json:"id"`
	OfflineID          *string                     `json:"offline_id"`
	ClientID           string                      `json:"client_id"`
	ServiceTypes       []string                    `json:"service_types"`
	Phase              string                      `json:"phase"`
	Status             string                      `json:"status"` // legacy five-value projection of Phase
	AssignedTo         string                      `json:"assigned_to"`
	CreatedBy          string                      `json:"created_by"`
	Location           string                      `json:"location"`
	ScheduledFor       *string                     `json:"scheduled_for"`
	Amount             decimal.Decimal             `json:"amount"`
	PaymentStatus      string                      `json:"payment_status"`
	ReportData         map[string]interface{}      `json:"report_data"`
	PhotoKey           *string                     `json:"photo_key"`
	ApprovedBy         *string                     `json:"approved_by"`
	ApprovedAt         *string                     `json:"approved_at"`
	ReportApprovedAt   *string                     `json:"report_approved_at"`
	RejectionReason    *string                     `json:"rejection_reason"`
	StickerAllocations []StickerAllocationResponse `json:"sticker_allocations"`
	Tags               []TagResponse               `json:"tags"`
	Payments           []PaymentResponse           `json:"payments"`
	Certificate        *CertificateResponse        `json:"certificate"`
	CreatedAt          string                      `json:"created_at"`
}

// SyncResult reports the outcome of one replayed offline job order.
type SyncResult struct {
	OfflineID  string            `json:"offline_id"`
	JobOrderID string            `json:"job_order_id,omitempty"`
	Kind       string            `json:"kind,omitempty"` // empty on success
	Detail     string            `json:"detail,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

type SyncBatchResponse struct {
	Results []SyncResult `json:"results"`
}
