// Package pipeline 定义了文档入库的异步处理流程。
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"studynet-go/internal/service"
	"studynet-go/pkg/log"
	"studynet-go/pkg/storage"
	"studynet-go/pkg/tasks"
	"studynet-go/pkg/tika"
)

// Processor 消费入库任务：下载原始文件、提取文本并写入知识库。
type Processor struct {
	objectStore   *storage.ObjectStore
	tikaClient    *tika.Client
	ingestService service.IngestService
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(objectStore *storage.ObjectStore, tikaClient *tika.Client, ingestService service.IngestService) *Processor {
	return &Processor{
		objectStore:   objectStore,
		tikaClient:    tikaClient,
		ingestService: ingestService,
	}
}

// Process 处理一条入库任务。Content 非空的任务是直接文本, 跳过下载与提取。
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) error {
	log.Infof("[Processor] 开始处理入库任务, DocumentID: %s, FileName: %s", task.DocumentID, task.FileName)

	text := task.Content
	if text == "" {
		object, err := p.objectStore.Get(ctx, task.ObjectName)
		if err != nil {
			return fmt.Errorf("download object %s failed: %w", task.ObjectName, err)
		}
		defer object.Close()

		text, err = p.tikaClient.ExtractText(object, task.FileName)
		if err != nil {
			return fmt.Errorf("extract text from %s failed: %w", task.FileName, err)
		}
	}

	if strings.TrimSpace(text) == "" {
		log.Warnf("[Processor] 文档 %s 提取不到文本, 跳过", task.FileName)
		return nil
	}

	docID, chunks, err := p.ingestService.AddDocument(ctx, task.DocumentID, text, task.FileName, task.SourceType)
	if err != nil {
		return fmt.Errorf("ingest document %s failed: %w", task.FileName, err)
	}
	log.Infof("[Processor] 入库任务完成, DocumentID: %s, 子块数: %d", docID, chunks)
	return nil
}
