// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studynet-go/internal/errs"
	"studynet-go/internal/model"
)

// respondError 将错误分类映射到 HTTP 状态码并写出结构化错误响应。
func respondError(c *gin.Context, err error) {
	kind := errs.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "invalid_query", "ingestion_error":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	case "store_unavailable":
		status = http.StatusServiceUnavailable
	case "timeout":
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, model.ErrorResponse{Code: kind, Message: err.Error()})
}
