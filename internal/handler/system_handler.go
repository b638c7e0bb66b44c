package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studynet-go/internal/model"
	"studynet-go/internal/repository"
	"studynet-go/internal/service"
	"studynet-go/pkg/log"
)

// SystemHandler 处理健康检查与运行指标请求。
type SystemHandler struct {
	metricsRepo   repository.MetricsRepository
	ingestService service.IngestService
}

// NewSystemHandler 创建一个新的 SystemHandler 实例。
func NewSystemHandler(metricsRepo repository.MetricsRepository, ingestService service.IngestService) *SystemHandler {
	return &SystemHandler{metricsRepo: metricsRepo, ingestService: ingestService}
}

// Health 健康检查。
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics 返回查询计数、平均延迟与知识库规模。
func (h *SystemHandler) Metrics(c *gin.Context) {
	queries, errCount, webUses, avgLatency, err := h.metricsRepo.Snapshot(c.Request.Context())
	if err != nil {
		log.Errorf("[SystemHandler] 读取指标失败: %v", err)
		respondError(c, err)
		return
	}

	var totalDocs int64
	if status, err := h.ingestService.Status(c.Request.Context()); err == nil {
		totalDocs = status.TotalDocuments
	}

	c.JSON(http.StatusOK, model.MetricsSnapshot{
		TotalQueries:   queries,
		TotalErrors:    errCount,
		WebSearchUses:  webUses,
		AvgLatencyMs:   avgLatency,
		TotalDocuments: totalDocs,
	})
}
