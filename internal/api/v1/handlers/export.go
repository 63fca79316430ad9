package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voicepipe/internal/api/middleware"
	"voicepipe/internal/api/v1/services"
)

// ExportHandler serves downloadable exports of a user's recordings.
type ExportHandler struct {
	service services.ExportService
}

func NewExportHandler(service services.ExportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Download handles GET /api/voice/export
//
// @Summary Export the caller's recordings as xlsx
// @Description Builds an xlsx workbook with all recordings, transcriptions and quality scores
// @Tags voice
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary "Workbook"
// @Router /voice/export [get]
func (h *ExportHandler) Download(c *gin.Context) {
	data, err := h.service.ExportUserRecordings(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	filename := fmt.Sprintf("recordings-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
