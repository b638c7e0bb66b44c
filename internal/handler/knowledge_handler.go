package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studynet-go/internal/service"
	"studynet-go/pkg/log"
)

// KnowledgeHandler 处理知识库管理请求：状态、重载与清空。
type KnowledgeHandler struct {
	ingestService service.IngestService
}

// NewKnowledgeHandler 创建一个新的 KnowledgeHandler 实例。
func NewKnowledgeHandler(ingestService service.IngestService) *KnowledgeHandler {
	return &KnowledgeHandler{ingestService: ingestService}
}

// Status 返回知识库当前的块与文档计数。
func (h *KnowledgeHandler) Status(c *gin.Context) {
	status, err := h.ingestService.Status(c.Request.Context())
	if err != nil {
		log.Errorf("[KnowledgeHandler] 获取知识库状态失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Reload 清空并重新导入种子目录。幂等。
func (h *KnowledgeHandler) Reload(c *gin.Context) {
	imported, err := h.ingestService.ReloadSeed(c.Request.Context())
	if err != nil {
		log.Errorf("[KnowledgeHandler] 种子重载失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "documents_imported": imported})
}

// Clear 清空向量索引与父块存储。幂等。
func (h *KnowledgeHandler) Clear(c *gin.Context) {
	if err := h.ingestService.Clear(c.Request.Context()); err != nil {
		log.Errorf("[KnowledgeHandler] 清空知识库失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
