package handler

import (
	"net/http"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// InventoryHandler serves lots, holdings, transfers and stock requests.
type InventoryHandler struct{ svc service.AllocationService }

func NewInventoryHandler(svc service.AllocationService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// CreateLot godoc
// @Summary Register a sticker lot
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateLotRequest true "Lot"
// @Success 201 {object} dto.LotResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/lots [post]
func (h *InventoryHandler) CreateLot(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.CreateLotRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateLot(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListLots godoc
// @Summary List lots
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param status query string false "active | depleted | archived"
// @Success 200 {array} dto.LotResponse
// @Router /v1/lots [get]
func (h *InventoryHandler) ListLots(c *gin.Context) {
	var filter dto.LotFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListLots(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetLot godoc
// @Summary Get a lot
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lot ID"
// @Success 200 {object} dto.LotResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/lots/{id} [get]
func (h *InventoryHandler) GetLot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetLot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// IssueStock godoc
// @Summary Issue stock from a lot to a region or inspector
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.IssueStockRequest true "Issue"
// @Success 201 {object} dto.HoldingResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/stock/issue [post]
func (h *InventoryHandler) IssueStock(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.IssueStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.IssueStock(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListHoldings godoc
// @Summary List stock holdings
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param holder_id query string false "Holder"
// @Param lot_id query string false "Lot"
// @Success 200 {array} dto.HoldingResponse
// @Router /v1/stock/holdings [get]
func (h *InventoryHandler) ListHoldings(c *gin.Context) {
	var filter dto.HoldingFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListHoldings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Transfer godoc
// @Summary Move stock between holders
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.TransferRequest true "Transfer"
// @Success 201 {object} dto.TransferResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/stock/transfers [post]
func (h *InventoryHandler) Transfer(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Transfer(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListTransfers godoc
// @Summary List transfers
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param lot_id query string false "Lot"
// @Param holder_id query string false "Sender or receiver"
// @Success 200 {array} dto.TransferResponse
// @Router /v1/stock/transfers [get]
func (h *InventoryHandler) ListTransfers(c *gin.Context) {
	var filter dto.TransferFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListTransfers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitRequest godoc
// @Summary Request stock
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.SubmitStockRequest true "Request"
// @Success 201 {object} dto.StockRequestResponse
// @Router /v1/stock/requests [post]
func (h *InventoryHandler) SubmitRequest(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.SubmitStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SubmitRequest(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListRequests godoc
// @Summary List stock requests
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending | approved | rejected"
// @Param requester_id query string false "Requester"
// @Success 200 {array} dto.StockRequestResponse
// @Router /v1/stock/requests [get]
func (h *InventoryHandler) ListRequests(c *gin.Context) {
	var filter dto.RequestFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ApproveRequest godoc
// @Summary Approve and fulfil a stock request
// @Description Picks the oldest active lot with enough stock and issues it to the requester.
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param X-On-Behalf-Of header string false "Delegator ID"
// @Success 200 {object} dto.StockRequestResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/stock/requests/{id}/approve [post]
func (h *InventoryHandler) ApproveRequest(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ApproveRequest(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RejectRequest godoc
// @Summary Reject a stock request
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param X-On-Behalf-Of header string false "Delegator ID"
// @Param body body dto.RejectRequestRequest true "Reason"
// @Success 200 {object} dto.StockRequestResponse
// @Router /v1/stock/requests/{id}/reject [post]
func (h *InventoryHandler) RejectRequest(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.RejectRequestRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RejectRequest(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AllocateSticker godoc
// @Summary Allocate a sticker from a holding to a job order
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job order ID"
// @Param body body dto.AllocateStickerRequest true "Holding"
// @Success 201 {object} dto.StickerAllocationResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/job-orders/{id}/stickers [post]
func (h *InventoryHandler) AllocateSticker(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.AllocateStickerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AllocateSticker(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
