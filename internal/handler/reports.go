package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportsHandler struct{ svc service.ExportService }

func NewReportsHandler(svc service.ExportService) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Inventory godoc
// @Summary Download the inventory workbook
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /v1/reports/inventory.xlsx [get]
func (h *ReportsHandler) Inventory(c *gin.Context) {
	// Render into memory first so a failure can still answer with JSON.
	var buf bytes.Buffer
	if err := h.svc.InventoryWorkbook(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("inventory-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
