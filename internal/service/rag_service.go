package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studynet-go/internal/config"
	"studynet-go/internal/model"
	"studynet-go/internal/repository"
	"studynet-go/pkg/llm"
	"studynet-go/pkg/log"
)

// RAGService 编排完整的问答流程：分类、检索、合并、重排、生成与记忆更新。
type RAGService interface {
	Query(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error)
	// StreamQuery 走同样的检索流程，但生成阶段逐块写入 writer。
	StreamQuery(ctx context.Context, req model.QueryRequest, writer llm.ChunkWriter) error
}

type ragService struct {
	queryService     QueryService
	retrievalService RetrievalService
	rerankService    RerankService
	answerService    AnswerService
	memoryService    MemoryService
	metricsRepo      repository.MetricsRepository
	topK             int
}

// NewRAGService 创建一个新的 RAGService 实例。
func NewRAGService(
	queryService QueryService,
	retrievalService RetrievalService,
	rerankService RerankService,
	answerService AnswerService,
	memoryService MemoryService,
	metricsRepo repository.MetricsRepository,
	cfg config.RetrievalConfig,
) RAGService {
	return &ragService{
		queryService:     queryService,
		retrievalService: retrievalService,
		rerankService:    rerankService,
		answerService:    answerService,
		memoryService:    memoryService,
		metricsRepo:      metricsRepo,
		topK:             cfg.TopK,
	}
}

// retrieve 执行分类后的两路检索与合并重排，返回解析结果与最终上下文。
func (s *ragService) retrieve(ctx context.Context, query string) (model.ParsedQuery, []model.RetrievalResult, error) {
	parsed, err := s.queryService.Classify(ctx, query)
	if err != nil {
		return model.ParsedQuery{}, nil, err
	}
	log.Infof("[RAGService] 查询分类: kind=%s intent=%s", parsed.Kind, parsed.Intent)

	var semantic, structured []model.RetrievalResult

	// 语义路径：仅 SEMANTIC/HYBRID 需要向量检索
	if parsed.Kind == model.QuerySemantic || parsed.Kind == model.QueryHybrid {
		variants := s.queryService.Reformulate(ctx, parsed.Original)
		parsed.Variants = variants
		semantic, err = s.retrievalService.SemanticSearch(ctx, variants, s.topK)
		if err != nil {
			// 混合查询还能依赖结构化路径, 纯语义查询则失败
			if parsed.Kind == model.QuerySemantic {
				return parsed, nil, fmt.Errorf("semantic retrieval failed: %w", err)
			}
			log.Warnf("[RAGService] 语义检索失败, 仅用结构化结果: %v", err)
			semantic = nil
		}
	}

	// 结构化路径：SEMANTIC 之外都查课程表
	if parsed.Kind != model.QuerySemantic {
		structured, err = s.retrievalService.StructuredSearch(parsed, s.topK)
		if err != nil {
			return parsed, nil, err
		}
	}

	merged := s.retrievalService.Merge(parsed.Kind, semantic, structured, s.topK)
	merged = s.rerankService.Rerank(ctx, parsed.Original, merged)
	return parsed, merged, nil
}

// Query 同步问答。检索为空且允许时启用网络搜索兜底。
func (s *ragService) Query(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error) {
	started := time.Now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	parsed, results, err := s.retrieve(ctx, req.Query)
	if err != nil {
		s.recordError(ctx)
		return model.QueryResponse{}, err
	}

	webSearchUsed := false
	if len(results) == 0 && req.UseWebSearch {
		webResults := s.answerService.WebSearch(ctx, parsed.Original)
		if len(webResults) > 0 {
			results = webResults
			webSearchUsed = true
		}
	}

	memory, err := s.memoryService.Load(ctx, sessionID)
	if err != nil {
		log.Warnf("[RAGService] 加载会话记忆失败, 按空记忆继续: %v", err)
		memory = model.SessionMemory{SessionID: sessionID}
	}

	answer, err := s.answerService.Generate(ctx, parsed.Original, results, memory)
	if err != nil {
		s.recordError(ctx)
		return model.QueryResponse{}, err
	}

	if err := s.memoryService.AppendTurn(ctx, sessionID, parsed.Original, answer.Text); err != nil {
		log.Warnf("[RAGService] 更新会话记忆失败: %v", err)
	}

	latency := time.Since(started).Milliseconds()
	if err := s.metricsRepo.RecordQuery(ctx, latency, webSearchUsed); err != nil {
		log.Warnf("[RAGService] 记录查询指标失败: %v", err)
	}

	sources := make([]model.SourceDTO, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		sources = append(sources, model.SourceDTO{Type: string(src.Source), Content: src.Content})
	}
	return model.QueryResponse{
		Answer:          answer.Text,
		Sources:         sources,
		ConfidenceScore: answer.Confidence,
		WebSearchUsed:   webSearchUsed,
		SessionID:       sessionID,
	}, nil
}

// StreamQuery 流式问答。记忆在流结束后整体追加。
func (s *ragService) StreamQuery(ctx context.Context, req model.QueryRequest, writer llm.ChunkWriter) error {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	parsed, results, err := s.retrieve(ctx, req.Query)
	if err != nil {
		s.recordError(ctx)
		return err
	}

	memory, err := s.memoryService.Load(ctx, sessionID)
	if err != nil {
		memory = model.SessionMemory{SessionID: sessionID}
	}

	collector := &collectingWriter{inner: writer}
	if err := s.answerService.StreamGenerate(ctx, parsed.Original, results, memory, collector); err != nil {
		s.recordError(ctx)
		return err
	}

	if err := s.memoryService.AppendTurn(ctx, sessionID, parsed.Original, collector.String()); err != nil {
		log.Warnf("[RAGService] 更新会话记忆失败: %v", err)
	}
	return nil
}

func (s *ragService) recordError(ctx context.Context) {
	if err := s.metricsRepo.RecordError(ctx); err != nil {
		log.Warnf("[RAGService] 记录错误指标失败: %v", err)
	}
}

// collectingWriter 在转发的同时累积完整回答, 供记忆追加使用。
type collectingWriter struct {
	inner llm.ChunkWriter
	buf   []byte
}

func (w *collectingWriter) WriteChunk(chunk []byte) error {
	w.buf = append(w.buf, chunk...)
	return w.inner.WriteChunk(chunk)
}

func (w *collectingWriter) String() string {
	return string(w.buf)
}
