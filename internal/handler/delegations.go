package handler

import (
	"net/http"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type DelegationsHandler struct{ svc service.DelegationService }

func NewDelegationsHandler(svc service.DelegationService) *DelegationsHandler {
	return &DelegationsHandler{svc: svc}
}

// Resolve godoc
// @Summary Resolve who acts for a delegator
// @Description Primary is the active delegate with the lowest priority number, or null.
// @Tags delegations
// @Produce json
// @Security BearerAuth
// @Param delegator path string true "Delegator ID"
// @Success 200 {object} dto.DelegationResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/delegations/{delegator}/resolve [get]
func (h *DelegationsHandler) Resolve(c *gin.Context) {
	id, ok := pathID(c, "delegator")
	if !ok {
		return
	}
	resp, err := h.svc.Resolve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Set godoc
// @Summary Replace a delegator's delegate list
// @Tags delegations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param delegator path string true "Delegator ID"
// @Param body body dto.SetDelegationRequest true "Delegates"
// @Success 200 {object} dto.DelegationResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/delegations/{delegator} [put]
func (h *DelegationsHandler) Set(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "delegator")
	if !ok {
		return
	}
	var req dto.SetDelegationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SetDelegation(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
