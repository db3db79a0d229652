package dto

// ─── Filter / List ──────────────────────────────────────────────────────────

// LotFilter is bound from query string of GET /v1/lots.
type LotFilter struct {
	Status string `form:"status" validate:"omitempty,oneof=active depleted archived"`
}

// HoldingFilter is bound from query string of GET /v1/stock/holdings.
type HoldingFilter struct {
	HolderID string `form:"holder_id" validate:"omitempty,uuid"`
	LotID    string `form:"lot_id"    validate:"omitempty,uuid"`
}

// TransferFilter is bound from query string of GET /v1/stock/transfers.
type TransferFilter struct {
	LotID    string `form:"lot_id"    validate:"omitempty,uuid"`
	HolderID string `form:"holder_id" validate:"omitempty,uuid"`
}

// RequestFilter is bound from query string of GET /v1/stock/requests.
type RequestFilter struct {
	Status      string `form:"status"       validate:"omitempty,oneof=pending approved rejected"`
	RequesterID string `form:"requester_id" validate:"omitempty,uuid"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateLotRequest struct {
	LotNumber string `json:"lot_number" validate:"required,min=1,max=64"`
	Size      string `json:"size"       validate:"required,min=1,max=32"`
	TotalQty  int    `json:"total_qty"  validate:"required,min=1"`
}

type IssueStockRequest struct {
	LotID      string `json:"lot_id"      validate:"required,uuid"`
	HolderID   string `json:"holder_id"   validate:"required,uuid"`
	HolderName string `json:"holder_name" validate:"omitempty,max=100"`
	HolderType string `json:"holder_type" validate:"required,oneof=region inspector"`
	Qty        int    `json:"qty"         validate:"required,min=1"`
}

type TransferRequest struct {
	FromHolderID string `json:"from_holder_id" validate:"required,uuid"`
	ToHolderID   string `json:"to_holder_id"   validate:"required,uuid"`
	ToHolderName string `json:"to_holder_name" validate:"omitempty,max=100"`
	ToHolderType string `json:"to_holder_type" validate:"omitempty,oneof=region inspector"`
	LotNumber    string `json:"lot_number"     validate:"required"`
	Qty          int    `json:"qty"            validate:"required,min=1"`
	Notes        string `json:"notes"          validate:"omitempty,max=500"`
}

type SubmitStockRequest struct {
	// RequesterID defaults to the authenticated user when omitted.
	RequesterID         string  `json:"requester_id"          validate:"omitempty,uuid"`
	RequesterType       string  `json:"requester_type"        validate:"omitempty,oneof=region inspector"`
	Qty                 int     `json:"qty"                   validate:"required,min=1"`
	LotNumberPreference *string `json:"lot_number_preference" validate:"omitempty,max=64"`
	Notes               string  `json:"notes"                 validate:"omitempty,max=500"`
}

type RejectRequestRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

type AllocateStickerRequest struct {
	StockHoldingID string  `json:"stock_holding_id" validate:"required,uuid"`
	StickerNumber  *string `json:"sticker_number"   validate:"omitempty,max=64"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LotResponse struct {
	ID           string `json:"id"`
	LotNumber    string `json:"lot_number"`
	Size         string `json:"size"`
	TotalQty     int    `json:"total_qty"`
	IssuedQty    int    `json:"issued_qty"`
	AvailableQty int    `json:"available_qty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

type HoldingResponse struct {
	ID           string `json:"id"`
	LotID        string `json:"lot_id"`
	LotNumber    string `json:"lot_number"`
	HolderID     string `json:"holder_id"`
	HolderName   string `json:"holder_name"`
	HolderType   string `json:"holder_type"`
	Qty          int    `json:"qty"`
	AllocatedQty int    `json:"allocated_qty"`
	Remaining    int    `json:"remaining"`
	IssuedAt     string `json:"issued_at"`
}

type TransferResponse struct {
	ID           string `json:"id"`
	LotID        string `json:"lot_id"`
	LotNumber    string `json:"lot_number"`
	FromHolderID string `json:"from_holder_id"`
	ToHolderID   string `json:"to_holder_id"`
	Qty          int    `json:"qty"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
	CreatedAt    string `json:"created_at"`
}

type StockRequestResponse struct {
	ID                  string  `json:"id"`
	RequesterID         *string `json:"requester_id"`
	RequesterName       string  `json:"requester_name"`
	RequesterType       string  `json:"requester_type"`
	Qty                 int     `json:"qty"`
	LotNumberPreference *string `json:"lot_number_preference"`
	Status              string  `json:"status"`
	// ApprovedBy is the display actor: the delegator when approved by a delegate.
	ApprovedBy      *string `json:"approved_by"`
	ApprovedAt      *string `json:"approved_at"`
	RejectedBy      *string `json:"rejected_by"`
	RejectionReason *string `json:"rejection_reason"`
	FulfilledLotID  *string `json:"fulfilled_lot_id"`
	HoldingID       *string `json:"holding_id"`
	CreatedAt       string  `json:"created_at"`
}

type StickerAllocationResponse struct {
	ID             string  `json:"id"`
	JobOrderID     string  `json:"job_order_id"`
	StockHoldingID string  `json:"stock_holding_id"`
	LotNumber      string  `json:"lot_number"`
	StickerNumber  *string `json:"sticker_number"`
	Qty            int     `json:"qty"`
	AllocatedBy    string  `json:"allocated_by"`
	CreatedAt      string  `json:"created_at"`
}
