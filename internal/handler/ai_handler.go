package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/service"
)

// AIHandler 生成式分析接口。模型不可用时返回 502，其它功能不受影响。
type AIHandler struct {
	aiService *service.AIService
	logger    *zap.Logger
}

func NewAIHandler(aiService *service.AIService, logger *zap.Logger) *AIHandler {
	return &AIHandler{aiService: aiService, logger: logger}
}

func (h *AIHandler) SummarizeStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.aiService.SummarizeStatus(c.Request.Context(), actor(c), id, Lang(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AIHandler) PredictRisks(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.aiService.PredictRisks(c.Request.Context(), actor(c), id, Lang(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AIHandler) LessonsLearned(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.aiService.LessonsLearned(c.Request.Context(), actor(c), id, Lang(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CriticalPath POST /projects/:id/ai/critical-path?apply=true
func (h *AIHandler) CriticalPath(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	apply := c.Query("apply") == "true"
	res, err := h.aiService.AnalyzeCriticalPath(c.Request.Context(), actor(c), id, apply, Lang(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"critical_path": res, "applied": apply})
}

func (h *AIHandler) Portfolio(c *gin.Context) {
	res, err := h.aiService.SummarizeAllProjects(c.Request.Context(), actor(c), Lang(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
