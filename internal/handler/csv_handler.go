package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/service"
)

type CSVHandler struct {
	csvService *service.CSVService
	logger     *zap.Logger
}

func NewCSVHandler(csvService *service.CSVService, logger *zap.Logger) *CSVHandler {
	return &CSVHandler{csvService: csvService, logger: logger}
}

// Export GET /projects/:id/tasks/export
func (h *CSVHandler) Export(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if _, err := h.csvService.Export(c.Request.Context(), actor(c), id, &buf); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="project-%d-tasks.csv"`, id))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Preview POST /projects/:id/tasks/import/preview (multipart: file)
func (h *CSVHandler) Preview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	preview, err := h.csvService.Preview(c.Request.Context(), actor(c), id, f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Import POST /projects/:id/tasks/import (multipart: file, mapping)
func (h *CSVHandler) Import(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	var mapping map[string]string
	if err := json.Unmarshal([]byte(c.PostForm("mapping")), &mapping); err != nil {
		badRequest(c, fmt.Errorf("mapping must be a JSON object: %w", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	result, err := h.csvService.Import(c.Request.Context(), actor(c), id, f, mapping)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
