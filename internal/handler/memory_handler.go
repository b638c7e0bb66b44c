package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studynet-go/internal/model"
	"studynet-go/internal/service"
	"studynet-go/pkg/log"
)

// MemoryHandler 处理会话记忆的查询与清除请求。
type MemoryHandler struct {
	memoryService service.MemoryService
}

// NewMemoryHandler 创建一个新的 MemoryHandler 实例。
func NewMemoryHandler(memoryService service.MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

// Get 返回会话的摘要与最近消息。未知会话返回空记忆。
func (h *MemoryHandler) Get(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Code: "invalid_query", Message: "session_id is required"})
		return
	}

	memory, err := h.memoryService.Load(c.Request.Context(), sessionID)
	if err != nil {
		log.Errorf("[MemoryHandler] 读取会话记忆失败 %s: %v", sessionID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memory)
}

// Delete 清除会话记忆。幂等。
func (h *MemoryHandler) Delete(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Code: "invalid_query", Message: "session_id is required"})
		return
	}

	if err := h.memoryService.Clear(c.Request.Context(), sessionID); err != nil {
		log.Errorf("[MemoryHandler] 清除会话记忆失败 %s: %v", sessionID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "session_id": sessionID})
}
