package handler

import (
	"net/http"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type TagsHandler struct{ svc service.TagService }

func NewTagsHandler(svc service.TagService) *TagsHandler { return &TagsHandler{svc: svc} }

// Create godoc
// @Summary Register a tag
// @Tags tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateTagRequest true "Tag"
// @Success 201 {object} dto.TagResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tags [post]
func (h *TagsHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.CreateTagRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateTag(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary List tags
// @Tags tags
// @Produce json
// @Security BearerAuth
// @Param status query string false "available | allocated | used | removed"
// @Success 200 {array} dto.TagResponse
// @Router /v1/tags [get]
func (h *TagsHandler) List(c *gin.Context) {
	var filter dto.TagFilter
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
// @Summary Find a tag by number
// @Tags tags
// @Produce json
// @Security BearerAuth
// @Param number path string true "Tag number"
// @Success 200 {object} dto.TagResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/tags/{number} [get]
func (h *TagsHandler) Get(c *gin.Context) {
	resp, err := h.svc.FindByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Allocate godoc
// @Summary Attach a tag to a job order
// @Tags tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path string true "Tag number"
// @Param body body dto.AllocateTagRequest true "Job order"
// @Success 200 {object} dto.TagResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tags/{number}/allocate [post]
func (h *TagsHandler) Allocate(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.AllocateTagRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AllocateTag(c.Request.Context(), a, c.Param("number"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MarkUsed godoc
// @Summary Mark a tag as fitted
// @Tags tags
// @Produce json
// @Security BearerAuth
// @Param number path string true "Tag number"
// @Success 200 {object} dto.TagResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tags/{number}/used [post]
func (h *TagsHandler) MarkUsed(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	resp, err := h.svc.MarkUsed(c.Request.Context(), a, c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRemoved godoc
// @Summary Retire a tag
// @Tags tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path string true "Tag number"
// @Param body body dto.RemoveTagRequest true "Reason"
// @Success 200 {object} dto.TagResponse
// @Router /v1/tags/{number}/removed [post]
func (h *TagsHandler) MarkRemoved(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req dto.RemoveTagRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.MarkRemoved(c.Request.Context(), a, c.Param("number"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
