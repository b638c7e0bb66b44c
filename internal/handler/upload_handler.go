package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studynet-go/internal/model"
	"studynet-go/internal/service"
	"studynet-go/pkg/log"
)

// UploadHandler 处理文档与文本上传请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadDocument 接收 multipart 文件, 存入对象存储并排队异步入库。
func (h *UploadHandler) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Code: "ingestion_error", Message: "file field is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Code: "ingestion_error", Message: "cannot open uploaded file"})
		return
	}
	defer file.Close()

	docID, err := h.uploadService.UploadDocument(c.Request.Context(), file, fileHeader)
	if err != nil {
		log.Errorf("[UploadHandler] 文件上传失败 %s: %v", fileHeader.Filename, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, model.UploadResponse{
		Status:     "queued",
		Message:    "document queued for ingestion",
		DocumentID: docID,
	})
}

// UploadText 接收一段原始文本并排队异步入库。
func (h *UploadHandler) UploadText(c *gin.Context) {
	var req model.UploadTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Code: "ingestion_error", Message: "text is required"})
		return
	}

	docID, err := h.uploadService.UploadText(c.Request.Context(), req.Content, req.Metadata["source_name"])
	if err != nil {
		log.Errorf("[UploadHandler] 文本上传失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, model.UploadResponse{
		Status:     "queued",
		Message:    "text queued for ingestion",
		DocumentID: docID,
	})
}
