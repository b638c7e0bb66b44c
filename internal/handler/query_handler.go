package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studynet-go/internal/model"
	"studynet-go/internal/service"
	"studynet-go/pkg/log"
)

// QueryHandler 处理问答请求。
type QueryHandler struct {
	ragService service.RAGService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(ragService service.RAGService) *QueryHandler {
	return &QueryHandler{ragService: ragService}
}

// Query 是处理问答请求的 Gin 处理函数。
func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Code: "invalid_query", Message: "query is required"})
		return
	}
	log.Infof("[QueryHandler] 收到问答请求, query: %q, session: %s", req.Query, req.SessionID)

	resp, err := h.ragService.Query(c.Request.Context(), req)
	if err != nil {
		log.Errorf("[QueryHandler] 问答处理失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
