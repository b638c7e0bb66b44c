package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynet-go/internal/model"
)

func rerankCandidates() []model.RetrievalResult {
	return []model.RetrievalResult{
		{ChunkID: "a", Content: "passage a", Score: 0.5},
		{ChunkID: "b", Content: "passage b", Score: 0.4},
		{ChunkID: "c", Content: "passage c", Score: 0.3},
	}
}

func TestRerankReordersByScores(t *testing.T) {
	svc := NewRerankService(&stubLLM{response: `{"scores": [0.2, 0.9, 0.5]}`})

	reranked := svc.Rerank(context.Background(), "query", rerankCandidates())

	require.Len(t, reranked, 3)
	assert.Equal(t, "b", reranked[0].ChunkID)
	assert.Equal(t, "c", reranked[1].ChunkID)
	assert.Equal(t, "a", reranked[2].ChunkID)
}

func TestRerankLLMFailureReturnsInputUnchanged(t *testing.T) {
	svc := NewRerankService(&stubLLM{chatErr: errors.New("llm down")})
	input := rerankCandidates()

	reranked := svc.Rerank(context.Background(), "query", input)

	// 软失败: 条目与顺序与输入完全一致
	assert.Equal(t, input, reranked)
}

func TestRerankUnparsableResponseFallbackScores(t *testing.T) {
	svc := NewRerankService(&stubLLM{response: "not json at all"})

	reranked := svc.Rerank(context.Background(), "query", rerankCandidates())

	// 回退分数按原排名递减, 顺序保持
	require.Len(t, reranked, 3)
	assert.Equal(t, "a", reranked[0].ChunkID)
	assert.Greater(t, reranked[0].Score, reranked[1].Score)
	assert.Greater(t, reranked[1].Score, reranked[2].Score)
}

func TestRerankScoreCountMismatchFallback(t *testing.T) {
	svc := NewRerankService(&stubLLM{response: `{"scores": [0.9]}`})

	reranked := svc.Rerank(context.Background(), "query", rerankCandidates())

	require.Len(t, reranked, 3)
	assert.Equal(t, "a", reranked[0].ChunkID)
}

func TestRerankSingleCandidateShortCircuit(t *testing.T) {
	llmStub := &stubLLM{}
	svc := NewRerankService(llmStub)

	input := []model.RetrievalResult{{ChunkID: "only"}}
	reranked := svc.Rerank(context.Background(), "query", input)

	assert.Equal(t, input, reranked)
	assert.Equal(t, 0, llmStub.calls)
}

func TestRerankClampsScores(t *testing.T) {
	svc := NewRerankService(&stubLLM{response: `{"scores": [1.7, -0.2, 0.5]}`})

	reranked := svc.Rerank(context.Background(), "query", rerankCandidates())

	require.Len(t, reranked, 3)
	assert.Equal(t, 1.0, reranked[0].Score)
	assert.Equal(t, 0.0, reranked[2].Score)
}
