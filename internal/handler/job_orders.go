package handler

import (
	"context"
	"net/http"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type JobOrdersHandler struct{ svc service.JobOrderService }

func NewJobOrdersHandler(svc service.JobOrderService) *JobOrdersHandler {
	return &JobOrdersHandler{svc: svc}
}

// Create godoc
// @Summary      Create a job order
// @Description  Opens the invoice and, when stock_holding_id or tag_number is given, allocates them in the same transaction.
// @Tags         job-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateJobOrderRequest true "Job order"
// @Success      201  {object} dto.JobOrderResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/job-orders [post]
func (h *JobOrdersHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.CreateJobOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CommitOffline godoc
// @Summary      Commit a job order captured offline
// @Description  Idempotent by offline_id: a replay answers 200 with the stored job order.
// @Tags         job-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.OfflineJobOrderRequest true "Offline job order"
// @Success      201  {object} dto.JobOrderResponse
// @Success      200  {object} dto.JobOrderResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/job-orders/offline [post]
func (h *JobOrdersHandler) CommitOffline(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.OfflineJobOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, replayed, err := h.svc.CommitOffline(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// SyncBatch godoc
// @Summary      Replay offline job orders
// @Description  Processes items oldest first. A refused item is reported and the rest still run.
// @Tags         job-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.SyncBatchRequest true "Batch"
// @Success      200  {object} dto.SyncBatchResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/job-orders/sync-batch [post]
func (h *JobOrdersHandler) SyncBatch(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.SyncBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SyncBatch(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary      List job orders
// @Tags         job-orders
// @Produce      json
// @Security     BearerAuth
// @Param        phase       query string false "Phase"
// @Param        assigned_to query string false "Inspector"
// @Param        client_id   query string false "Client"
// @Param        page        query int    false "Page"
// @Param        limit       query int    false "Page size"
// @Success      200  {object} dto.JobOrderListResponse
// @Router       /v1/job-orders [get]
func (h *JobOrdersHandler) List(c *gin.Context) {
	var filter dto.JobOrderFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Get a job order
// @Tags         job-orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job order ID"
// @Success      200  {object} dto.JobOrderResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/job-orders/{id} [get]
func (h *JobOrdersHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Approve godoc
// @Summary      Approve a job order, or its report once in review
// @Tags         job-orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job order ID"
// @Param        X-On-Behalf-Of header string false "Delegator ID"
// @Success      200  {object} dto.JobOrderResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/job-orders/{id}/approve [post]
func (h *JobOrdersHandler) Approve(c *gin.Context) {
	h.transition(c, h.svc.Approve)
}

// Reject godoc
// @Summary      Reject a job order
// @Tags         job-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job order ID"
// @Param        X-On-Behalf-Of header string false "Delegator ID"
// @Param        body body dto.RejectJobOrderRequest true "Reason"
// @Success      200  {object} dto.JobOrderResponse
// @Router       /v1/job-orders/{id}/reject [post]
func (h *JobOrdersHandler) Reject(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.RejectJobOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Reject(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Start godoc
// @Summary      Start executing an approved job order
// @Tags         job-orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job order ID"
// @Success      200  {object} dto.JobOrderResponse
// @Router       /v1/job-orders/{id}/start [post]
func (h *JobOrdersHandler) Start(c *gin.Context) {
	h.transition(c, h.svc.StartExecution)
}

// SubmitReport godoc
// @Summary      Submit the inspection report
// @Tags         job-orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job order ID"
// @Param        body body dto.SubmitReportRequest true "Report"
// @Success      200  {object} dto.JobOrderResponse
// @Router       /v1/job-orders/{id}/report [post]
func (h *JobOrdersHandler) SubmitReport(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.SubmitReportRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SubmitReport(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitPayment godoc
// @Summary      Submit a payment for a job order
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job order ID"
// @Param        body body dto.SubmitPaymentRequest true "Payment"
// @Success      201  {object} dto.PaymentResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/job-orders/{id}/payments [post]
func (h *JobOrdersHandler) SubmitPayment(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.SubmitPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SubmitPayment(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ConfirmPayment godoc
// @Summary      Confirm the pending payment
// @Description  Marks the job order paid and issues its certificate.
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job order ID"
// @Success      200  {object} dto.JobOrderResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/job-orders/{id}/payment/confirm [post]
func (h *JobOrdersHandler) ConfirmPayment(c *gin.Context) {
	h.transition(c, h.svc.ConfirmPayment)
}

// RejectPayment godoc
// @Summary      Reject the pending payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job order ID"
// @Param        body body dto.RejectPaymentRequest true "Reason"
// @Success      200  {object} dto.PaymentResponse
// @Router       /v1/job-orders/{id}/payment/reject [post]
func (h *JobOrdersHandler) RejectPayment(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.RejectPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RejectPayment(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyCertificate godoc
// @Summary      Verify a certificate by its code
// @Tags         certificates
// @Produce      json
// @Param        code path string true "Verification code"
// @Success      200  {object} dto.CertificateResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/certificates/verify/{code} [get]
func (h *JobOrdersHandler) VerifyCertificate(c *gin.Context) {
	resp, err := h.svc.VerifyCertificate(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// transition runs a bodiless state change on the job order in :id.
func (h *JobOrdersHandler) transition(c *gin.Context, fn func(context.Context, service.Actor, uuid.UUID) (*dto.JobOrderResponse, error)) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := fn(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
