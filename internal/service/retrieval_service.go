package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"studynet-go/internal/config"
	"studynet-go/internal/errs"
	"studynet-go/internal/model"
	"studynet-go/internal/repository"
	"studynet-go/pkg/embedding"
	"studynet-go/pkg/log"
)

// RetrievalService 定义了检索操作：向量相似检索、结构化检索与混合合并。
type RetrievalService interface {
	// SemanticSearch 对全部查询变体执行向量检索并合并去重。
	SemanticSearch(ctx context.Context, variants []string, topK int) ([]model.RetrievalResult, error)
	// StructuredSearch 按过滤条件检索课程表并格式化为检索结果。
	StructuredSearch(parsed model.ParsedQuery, limit int) ([]model.RetrievalResult, error)
	// Merge 按查询类型合并两路结果。
	Merge(kind model.QueryKind, semantic, structured []model.RetrievalResult, topK int) []model.RetrievalResult
}

type retrievalService struct {
	embeddingClient embedding.Client
	childIndex      repository.ChildChunkIndex
	parentRepo      repository.ParentChunkRepository
	courseRepo      repository.CourseRepository
	threshold       float64
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(
	embeddingClient embedding.Client,
	childIndex repository.ChildChunkIndex,
	parentRepo repository.ParentChunkRepository,
	courseRepo repository.CourseRepository,
	cfg config.RetrievalConfig,
) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		childIndex:      childIndex,
		parentRepo:      parentRepo,
		courseRepo:      courseRepo,
		threshold:       cfg.SimilarityThreshold,
	}
}

// SemanticSearch 并发检索全部查询变体。同一子块被多个变体命中时保留最高分，
// 低于相似度阈值的结果被丢弃，返回前附带父块全文。
func (s *retrievalService) SemanticSearch(ctx context.Context, variants []string, topK int) ([]model.RetrievalResult, error) {
	if len(variants) == 0 {
		return []model.RetrievalResult{}, nil
	}

	type variantHits struct {
		hits []repository.ScoredChild
		err  error
	}
	results := make([]variantHits, len(variants))

	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(i int, variant string) {
			defer wg.Done()
			vector, err := s.embeddingClient.CreateEmbedding(ctx, variant)
			if err != nil {
				results[i] = variantHits{err: fmt.Errorf("embed variant failed: %w", err)}
				return
			}
			hits, err := s.childIndex.SimilaritySearch(ctx, vector, topK)
			results[i] = variantHits{hits: hits, err: err}
		}(i, variant)
	}
	wg.Wait()

	// 任一变体失败不致命，全部失败才报错
	best := make(map[string]repository.ScoredChild)
	var order []string
	var lastErr error
	failed := 0
	for i, r := range results {
		if r.err != nil {
			log.Warnf("[RetrievalService] 变体 %d 检索失败: %v", i, r.err)
			lastErr = r.err
			failed++
			continue
		}
		for _, hit := range r.hits {
			if hit.Score < s.threshold {
				continue
			}
			existing, ok := best[hit.Chunk.ChunkID]
			if !ok {
				order = append(order, hit.Chunk.ChunkID)
				best[hit.Chunk.ChunkID] = hit
			} else if hit.Score > existing.Score {
				best[hit.Chunk.ChunkID] = hit
			}
		}
	}
	if failed == len(variants) {
		return nil, fmt.Errorf("all query variants failed: %w", lastErr)
	}

	merged := make([]model.RetrievalResult, 0, len(best))
	for _, chunkID := range order {
		hit := best[chunkID]
		result := model.RetrievalResult{
			ChunkID:    hit.Chunk.ChunkID,
			Content:    hit.Chunk.TextContent,
			SourceName: hit.Chunk.SourceName,
			Source:     model.SourceType(hit.Chunk.SourceType),
			Score:      hit.Score,
		}
		// 父块扩展：子块命中后带出父块全文作为生成上下文
		parent, err := s.parentRepo.FindParentByID(hit.Chunk.ParentID)
		if err != nil {
			if !errors.Is(err, errs.ErrNotFound) {
				return nil, fmt.Errorf("expand parent chunk failed: %w", err)
			}
			// 父块已删除则退回子块文本
			result.ParentContent = hit.Chunk.TextContent
		} else {
			result.ParentContent = parent.TextContent
		}
		merged = append(merged, result)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// StructuredSearch 将课程行格式化为检索结果。结构化命中的分数固定为 1.0。
func (s *retrievalService) StructuredSearch(parsed model.ParsedQuery, limit int) ([]model.RetrievalResult, error) {
	switch parsed.Intent {
	case model.IntentCompareProviders:
		names := parsed.Filters.ProviderNames
		if len(names) == 0 && parsed.Filters.ProviderName != "" {
			names = []string{parsed.Filters.ProviderName}
		}
		rows, err := s.courseRepo.CompareProviders(names)
		if err != nil {
			return nil, fmt.Errorf("provider comparison failed: %w", err)
		}
		return formatComparisonRows(rows), nil
	case model.IntentGetIntakes:
		intakes, err := s.courseRepo.UpcomingIntakes(parsed.Filters.ProviderName, limit)
		if err != nil {
			return nil, fmt.Errorf("intake search failed: %w", err)
		}
		return formatIntakes(intakes), nil
	default:
		rows, err := s.courseRepo.SearchCourses(parsed.Filters, limit)
		if err != nil {
			return nil, fmt.Errorf("course search failed: %w", err)
		}
		return formatCourseRows(rows), nil
	}
}

func formatCourseRows(rows []model.CourseRow) []model.RetrievalResult {
	results := make([]model.RetrievalResult, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		fmt.Fprintf(&b, "%s at %s", row.CourseName, row.ProviderName)
		if row.StudyLevel != "" {
			fmt.Fprintf(&b, " (%s)", row.StudyLevel)
		}
		if row.TotalAnnualFee > 0 {
			fmt.Fprintf(&b, ". Annual fee: $%.0f AUD", row.TotalAnnualFee)
		}
		if row.AddressCity != "" {
			fmt.Fprintf(&b, ". Campus: %s, %s", row.AddressCity, row.AddressState)
		}
		if row.AustralianRanking > 0 {
			fmt.Fprintf(&b, ". Australian ranking: #%d", row.AustralianRanking)
		}
		if row.HasScholarship {
			b.WriteString(". Scholarships available")
		}
		if row.HasInternship {
			b.WriteString(". Includes internship")
		}
		if row.Description != "" {
			fmt.Fprintf(&b, ". %s", row.Description)
		}
		results = append(results, model.RetrievalResult{
			ChunkID:       fmt.Sprintf("course-%d", row.CourseID),
			Content:       b.String(),
			ParentContent: b.String(),
			SourceName:    row.ProviderName,
			Source:        model.SourceStructured,
			Score:         1.0,
		})
	}
	return results
}

func formatComparisonRows(rows []model.ProviderComparisonRow) []model.RetrievalResult {
	results := make([]model.RetrievalResult, 0, len(rows))
	for _, row := range rows {
		text := fmt.Sprintf(
			"%s: Australian ranking #%d, global ranking #%d, %d courses, annual fees from $%.0f to $%.0f AUD (average $%.0f), %d campuses.",
			row.ProviderName, row.AustralianRanking, row.GlobalRanking,
			row.TotalCourses, row.MinFee, row.MaxFee, row.AvgFee, row.CampusCount,
		)
		results = append(results, model.RetrievalResult{
			ChunkID:       "provider-" + row.ProviderName,
			Content:       text,
			ParentContent: text,
			SourceName:    row.ProviderName,
			Source:        model.SourceStructured,
			Score:         1.0,
		})
	}
	return results
}

func formatIntakes(intakes []model.Intake) []model.RetrievalResult {
	results := make([]model.RetrievalResult, 0, len(intakes))
	for _, in := range intakes {
		text := fmt.Sprintf("%s %d intake starts %s, applications close %s.",
			in.ProviderName, in.Year,
			in.CommencementDate.Format("2 January 2006"),
			in.ApplicationDeadline.Format("2 January 2006"))
		results = append(results, model.RetrievalResult{
			ChunkID:       fmt.Sprintf("intake-%d", in.ID),
			Content:       text,
			ParentContent: text,
			SourceName:    in.ProviderName,
			Source:        model.SourceStructured,
			Score:         1.0,
		})
	}
	return results
}

// Merge 按查询类型合并两路结果。STRUCTURED 只返回结构化命中，SEMANTIC 只返回
// 向量命中，HYBRID/COMPARISON 交错合并，结构化结果优先。
func (s *retrievalService) Merge(kind model.QueryKind, semantic, structured []model.RetrievalResult, topK int) []model.RetrievalResult {
	var merged []model.RetrievalResult
	switch kind {
	case model.QueryStructured:
		merged = structured
	case model.QuerySemantic:
		merged = semantic
	case model.QueryHybrid, model.QueryComparison:
		merged = interleave(structured, semantic)
	default:
		merged = interleave(structured, semantic)
	}
	merged = dedup(merged)
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

func interleave(a, b []model.RetrievalResult) []model.RetrievalResult {
	merged := make([]model.RetrievalResult, 0, len(a)+len(b))
	for i := 0; i < len(a) || i < len(b); i++ {
		if i < len(a) {
			merged = append(merged, a[i])
		}
		if i < len(b) {
			merged = append(merged, b[i])
		}
	}
	return merged
}

func dedup(results []model.RetrievalResult) []model.RetrievalResult {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		if seen[r.ChunkID] {
			continue
		}
		seen[r.ChunkID] = true
		out = append(out, r)
	}
	return out
}
