// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"studynet-go/internal/errs"
	"studynet-go/internal/model"
	"studynet-go/pkg/kafka"
	"studynet-go/pkg/log"
	"studynet-go/pkg/storage"
	"studynet-go/pkg/tasks"
)

// 允许上传的文档扩展名。
var supportedExtensions = map[string]bool{
	".txt": true, ".md": true, ".pdf": true,
	".doc": true, ".docx": true, ".html": true,
}

// UploadService 定义了文档上传操作：文件入对象存储并投递异步入库任务。
type UploadService interface {
	// UploadDocument 保存原始文件到 MinIO 并发送 Kafka 入库任务。
	UploadDocument(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error)
	// UploadText 直接投递一段原始文本的入库任务。
	UploadText(ctx context.Context, text, sourceName string) (string, error)
}

type uploadService struct {
	objectStore *storage.ObjectStore
	producer    *kafka.Producer
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(objectStore *storage.ObjectStore, producer *kafka.Producer) UploadService {
	return &uploadService{objectStore: objectStore, producer: producer}
}

// UploadDocument 校验扩展名后将文件存入 MinIO, 再投递提取任务。
// 投递失败时回滚已写入的对象。
func (s *uploadService) UploadDocument(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !supportedExtensions[ext] {
		return "", fmt.Errorf("unsupported file type %q: %w", ext, errs.ErrIngestion)
	}
	if header.Size == 0 {
		return "", fmt.Errorf("file %q is empty: %w", header.Filename, errs.ErrIngestion)
	}

	docID := uuid.NewString()
	objectName := fmt.Sprintf("documents/%s%s", docID, ext)
	if err := s.objectStore.Put(ctx, objectName, file, header.Size, header.Header.Get("Content-Type")); err != nil {
		return "", fmt.Errorf("store uploaded file failed: %w", err)
	}

	task := tasks.IngestTask{
		DocumentID: docID,
		ObjectName: objectName,
		FileName:   header.Filename,
		SourceType: string(model.SourceKnowledgeBase),
	}
	if err := s.producer.ProduceIngestTask(ctx, task); err != nil {
		if rmErr := s.objectStore.Remove(ctx, objectName); rmErr != nil {
			log.Errorf("[UploadService] 回滚对象失败 %s: %v", objectName, rmErr)
		}
		return "", fmt.Errorf("enqueue ingest task failed: %w", err)
	}

	log.Infof("[UploadService] 文档已上传并排队: %s (%s)", header.Filename, docID)
	return docID, nil
}

// UploadText 直接投递文本入库任务, 不经过对象存储与 Tika。
func (s *uploadService) UploadText(ctx context.Context, text, sourceName string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text content is empty: %w", errs.ErrIngestion)
	}
	if sourceName == "" {
		sourceName = "direct-text"
	}

	docID := uuid.NewString()
	task := tasks.IngestTask{
		DocumentID: docID,
		FileName:   sourceName,
		Content:    text,
		SourceType: string(model.SourceKnowledgeBase),
	}
	if err := s.producer.ProduceIngestTask(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue ingest task failed: %w", err)
	}
	log.Infof("[UploadService] 文本已排队入库: %s (%d 字符)", sourceName, len([]rune(text)))
	return docID, nil
}
