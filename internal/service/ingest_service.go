package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"studynet-go/internal/config"
	"studynet-go/internal/errs"
	"studynet-go/internal/model"
	"studynet-go/internal/repository"
	"studynet-go/pkg/embedding"
	"studynet-go/pkg/log"
)

// IngestService 定义了知识库写入操作：文档入库、清空、状态与种子重载。
type IngestService interface {
	// AddDocument 将一篇文档切块、向量化并入库，返回文档 ID 与子块数。
	// docID 为空时自动生成。
	AddDocument(ctx context.Context, docID, text, sourceName, sourceType string) (string, int, error)
	// Clear 清空全部向量与父块。幂等。
	Clear(ctx context.Context) error
	// Status 返回知识库当前的块计数。
	Status(ctx context.Context) (model.KnowledgeBaseStatus, error)
	// ReloadSeed 清空后重新导入种子目录。幂等。
	ReloadSeed(ctx context.Context) (int, error)
}

type ingestService struct {
	parentRepo      repository.ParentChunkRepository
	childIndex      repository.ChildChunkIndex
	embeddingClient embedding.Client
	embeddingModel  string
	parentSize      int
	childSize       int
	childOverlap    int
	seedDir         string

	// 写入端互斥：入库/清空/重载串行执行，检索不受影响
	writeMu sync.Mutex
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(
	parentRepo repository.ParentChunkRepository,
	childIndex repository.ChildChunkIndex,
	embeddingClient embedding.Client,
	retrievalCfg config.RetrievalConfig,
	embeddingCfg config.EmbeddingConfig,
	kbCfg config.KnowledgeBaseConfig,
) IngestService {
	return &ingestService{
		parentRepo:      parentRepo,
		childIndex:      childIndex,
		embeddingClient: embeddingClient,
		embeddingModel:  embeddingCfg.Model,
		parentSize:      retrievalCfg.ParentChunkSize,
		childSize:       retrievalCfg.ChildChunkSize,
		childOverlap:    retrievalCfg.ChildChunkOverlap,
		seedDir:         kbCfg.SeedDir,
	}
}

// splitRunes 按字符数切分文本，尽量在段落或句子边界断开。
// overlap 为相邻块的重叠字符数，0 表示不重叠。
func splitRunes(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		// 回退到最近的段落/句子边界，避免截断到一半
		cut := end
		for i := end; i > start+size/2; i-- {
			r := runes[i-1]
			if r == '\n' || r == '.' || r == '。' || r == '!' || r == '?' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[start:cut]))
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// AddDocument 两级切块：父块存 MySQL，子块从父块内部切出（保证包含关系）、
// 批量向量化后写入 ES。空文本返回 ErrIngestion。
func (s *ingestService) AddDocument(ctx context.Context, docID, text, sourceName, sourceType string) (string, int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if strings.TrimSpace(text) == "" {
		return "", 0, fmt.Errorf("document %q has no text content: %w", sourceName, errs.ErrIngestion)
	}

	parents := splitRunes(text, s.parentSize, 0)
	if len(parents) == 0 {
		return "", 0, fmt.Errorf("document %q produced no chunks: %w", sourceName, errs.ErrIngestion)
	}

	if docID == "" {
		docID = uuid.NewString()
	}

	// 同名来源重新入库时先替换旧版本
	if existing, err := s.parentRepo.FindDocumentBySource(sourceName); err == nil {
		if err := s.childIndex.DeleteByDocumentID(ctx, existing.ID); err != nil {
			return "", 0, fmt.Errorf("remove stale child chunks for %q failed: %w", sourceName, err)
		}
		if err := s.parentRepo.DeleteByDocumentID(existing.ID); err != nil {
			return "", 0, fmt.Errorf("remove stale parent chunks for %q failed: %w", sourceName, err)
		}
	}
	parentRows := make([]*model.ParentChunk, 0, len(parents))
	var children []model.ChildChunk
	var childTexts []string
	for seq, parentText := range parents {
		parentID := uuid.NewString()
		parentRows = append(parentRows, &model.ParentChunk{
			ID:          parentID,
			DocumentID:  docID,
			Seq:         seq,
			TextContent: parentText,
			SourceName:  sourceName,
		})
		for _, childText := range splitRunes(parentText, s.childSize, s.childOverlap) {
			children = append(children, model.ChildChunk{
				ChunkID:      uuid.NewString(),
				ParentID:     parentID,
				DocumentID:   docID,
				TextContent:  childText,
				ModelVersion: s.embeddingModel,
				SourceName:   sourceName,
				SourceType:   sourceType,
			})
			childTexts = append(childTexts, childText)
		}
	}

	vectors, err := s.embeddingClient.CreateEmbeddings(ctx, childTexts)
	if err != nil {
		return "", 0, fmt.Errorf("embed document %q failed: %w", sourceName, err)
	}
	if len(vectors) != len(children) {
		return "", 0, fmt.Errorf("embedding count mismatch for %q: %w", sourceName, errs.ErrIngestion)
	}
	for i := range children {
		children[i].Vector = vectors[i]
	}

	if err := s.parentRepo.CreateDocument(&model.Document{
		ID:         docID,
		SourceName: sourceName,
		SourceType: sourceType,
		ChunkCount: len(children),
	}); err != nil {
		return "", 0, fmt.Errorf("store document record failed: %w", err)
	}
	if err := s.parentRepo.BatchCreateParents(parentRows); err != nil {
		return docID, 0, fmt.Errorf("store parent chunks failed: %w", err)
	}
	if err := s.childIndex.IndexChildren(ctx, children); err != nil {
		// 已写入部分的计数随错误一起带回
		return docID, len(children), fmt.Errorf("index child chunks failed: %w", err)
	}

	log.Infof("[IngestService] 文档入库完成: %s (%d 父块, %d 子块)", sourceName, len(parentRows), len(children))
	return docID, len(children), nil
}

// Clear 清空向量索引与父块存储。两步都幂等，可重复调用。
func (s *ingestService) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.childIndex.Clear(ctx); err != nil {
		return fmt.Errorf("clear vector index failed: %w", err)
	}
	if err := s.parentRepo.TruncateAll(); err != nil {
		return fmt.Errorf("clear parent store failed: %w", err)
	}
	log.Info("[IngestService] 知识库已清空")
	return nil
}

// Status 返回父块、子块与文档的当前计数。
func (s *ingestService) Status(ctx context.Context) (model.KnowledgeBaseStatus, error) {
	parents, err := s.parentRepo.CountParents()
	if err != nil {
		return model.KnowledgeBaseStatus{}, fmt.Errorf("count parent chunks failed: %w", err)
	}
	docs, err := s.parentRepo.CountDocuments()
	if err != nil {
		return model.KnowledgeBaseStatus{}, fmt.Errorf("count documents failed: %w", err)
	}
	children, err := s.childIndex.Count(ctx)
	if err != nil {
		return model.KnowledgeBaseStatus{}, fmt.Errorf("count child chunks failed: %w", err)
	}
	return model.KnowledgeBaseStatus{
		ParentChunks:   parents,
		ChildChunks:    children,
		TotalDocuments: docs,
	}, nil
}

// ReloadSeed 清空后重新导入种子目录下的全部文本文件，返回导入的文档数。
func (s *ingestService) ReloadSeed(ctx context.Context) (int, error) {
	if s.seedDir == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(s.seedDir)
	if err != nil {
		return 0, fmt.Errorf("read seed directory failed: %w", err)
	}

	if err := s.Clear(ctx); err != nil {
		return 0, err
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.seedDir, entry.Name()))
		if err != nil {
			log.Warnf("[IngestService] 读取种子文件失败 %s: %v", entry.Name(), err)
			continue
		}
		if _, _, err := s.AddDocument(ctx, "", string(data), entry.Name(), string(model.SourceKnowledgeBase)); err != nil {
			log.Errorf("[IngestService] 种子文件入库失败 %s: %v", entry.Name(), err)
			continue
		}
		imported++
	}
	log.Infof("[IngestService] 种子目录重载完成, 导入 %d 篇文档", imported)
	return imported, nil
}
