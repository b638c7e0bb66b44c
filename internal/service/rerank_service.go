package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"studynet-go/internal/model"
	"studynet-go/pkg/llm"
	"studynet-go/pkg/log"
)

// RerankService 定义了检索结果的相关性重排操作。
type RerankService interface {
	// Rerank 用 LLM 对候选结果按与查询的相关性打分并重排。
	// 重排属于软失败：LLM 不可用或响应不可解析时原样返回输入。
	Rerank(ctx context.Context, query string, results []model.RetrievalResult) []model.RetrievalResult
}

type rerankService struct {
	llmClient llm.Client
}

// NewRerankService 创建一个新的 RerankService 实例。
func NewRerankService(llmClient llm.Client) RerankService {
	return &rerankService{llmClient: llmClient}
}

const rerankPrompt = `Rate the relevance of each passage to the query on a scale from 0.0 to 1.0.

Query: %s

Passages:
%s

Respond with JSON only: {"scores": [0.8, 0.3, ...]} with exactly %d scores, in passage order.`

type rerankResult struct {
	Scores []float64 `json:"scores"`
}

// Rerank 对候选结果重排。条目数不变，仅顺序与分数可能变化。
func (s *rerankService) Rerank(ctx context.Context, query string, results []model.RetrievalResult) []model.RetrievalResult {
	if len(results) < 2 {
		return results
	}

	var passages strings.Builder
	for i, r := range results {
		content := r.Content
		if len(content) > 500 {
			content = content[:500]
		}
		fmt.Fprintf(&passages, "[%d] %s\n", i+1, content)
	}

	messages := []llm.Message{
		{Role: "user", Content: fmt.Sprintf(rerankPrompt, query, passages.String(), len(results))},
	}
	resp, err := s.llmClient.Chat(ctx, messages, nil)
	if err != nil {
		log.Warnf("[RerankService] LLM 重排失败, 保持原始顺序: %v", err)
		return results
	}

	var parsed rerankResult
	if err := json.Unmarshal([]byte(extractJSON(resp)), &parsed); err != nil || len(parsed.Scores) != len(results) {
		// 解析失败时按原排名赋予递减的回退分数
		log.Warnf("[RerankService] 重排响应不可解析, 使用排名回退分数")
		reranked := make([]model.RetrievalResult, len(results))
		copy(reranked, results)
		for i := range reranked {
			reranked[i].Score = 1.0 - float64(i)/float64(len(reranked))
		}
		return reranked
	}

	reranked := make([]model.RetrievalResult, len(results))
	copy(reranked, results)
	for i := range reranked {
		score := parsed.Scores[i]
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		reranked[i].Score = score
	}
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	return reranked
}
