package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynet-go/internal/config"
	"studynet-go/internal/model"
	"studynet-go/internal/repository"
)

func newTestRetrievalService(index *fakeChildIndex, parents *fakeParentRepo, threshold float64) RetrievalService {
	return NewRetrievalService(&stubEmbedding{}, index, parents, nil, config.RetrievalConfig{
		SimilarityThreshold: threshold,
	})
}

func scoredChild(id, parentID, text string, score float64) repository.ScoredChild {
	return repository.ScoredChild{
		Chunk: model.ChildChunk{
			ChunkID:     id,
			ParentID:    parentID,
			TextContent: text,
			SourceName:  "guide.pdf",
			SourceType:  string(model.SourceKnowledgeBase),
		},
		Score: score,
	}
}

func TestSemanticSearchThresholdDrop(t *testing.T) {
	parents := newFakeParentRepo()
	parents.parents["p1"] = &model.ParentChunk{ID: "p1", TextContent: "parent one"}
	index := &fakeChildIndex{hits: []repository.ScoredChild{
		scoredChild("c1", "p1", "high score", 0.9),
		scoredChild("c2", "p1", "low score", 0.2),
	}}
	svc := newTestRetrievalService(index, parents, 0.5)

	results, err := svc.SemanticSearch(context.Background(), []string{"visa requirements"}, 10)
	require.NoError(t, err)

	// 低于阈值的命中被丢弃
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, "parent one", results[0].ParentContent)
}

func TestSemanticSearchThresholdMayEmptyResults(t *testing.T) {
	index := &fakeChildIndex{hits: []repository.ScoredChild{
		scoredChild("c1", "p1", "weak", 0.1),
	}}
	svc := newTestRetrievalService(index, newFakeParentRepo(), 0.5)

	results, err := svc.SemanticSearch(context.Background(), []string{"anything"}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticSearchMaxScoreDedup(t *testing.T) {
	parents := newFakeParentRepo()
	parents.parents["p1"] = &model.ParentChunk{ID: "p1", TextContent: "parent"}
	index := &fakeChildIndex{hits: []repository.ScoredChild{
		scoredChild("c1", "p1", "same chunk", 0.7),
	}}
	svc := newTestRetrievalService(index, parents, 0.5)

	// 两个变体命中同一子块, 结果只保留一条
	results, err := svc.SemanticSearch(context.Background(), []string{"variant one", "variant two"}, 10)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, 0.7, results[0].Score)
}

func TestSemanticSearchMissingParentFallsBackToChildText(t *testing.T) {
	// 父块已被并发删除, 检索不报错, 退回子块文本
	index := &fakeChildIndex{hits: []repository.ScoredChild{
		scoredChild("c1", "missing-parent", "orphan child", 0.8),
	}}
	svc := newTestRetrievalService(index, newFakeParentRepo(), 0.5)

	results, err := svc.SemanticSearch(context.Background(), []string{"query"}, 10)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "orphan child", results[0].ParentContent)
}

func semanticResult(id string, score float64) model.RetrievalResult {
	return model.RetrievalResult{ChunkID: id, Source: model.SourceKnowledgeBase, Score: score}
}

func structuredResult(id string) model.RetrievalResult {
	return model.RetrievalResult{ChunkID: id, Source: model.SourceStructured, Score: 1.0}
}

func TestMergeStructuredExclusive(t *testing.T) {
	svc := newTestRetrievalService(&fakeChildIndex{}, newFakeParentRepo(), 0.5)

	semantic := []model.RetrievalResult{semanticResult("s1", 0.9)}
	structured := []model.RetrievalResult{structuredResult("course-1")}

	merged := svc.Merge(model.QueryStructured, semantic, structured, 10)

	// 结构化查询的结果不含语义命中
	require.Len(t, merged, 1)
	for _, r := range merged {
		assert.Equal(t, model.SourceStructured, r.Source)
	}
}

func TestMergeSemanticExclusive(t *testing.T) {
	svc := newTestRetrievalService(&fakeChildIndex{}, newFakeParentRepo(), 0.5)

	merged := svc.Merge(model.QuerySemantic,
		[]model.RetrievalResult{semanticResult("s1", 0.9)},
		[]model.RetrievalResult{structuredResult("course-1")}, 10)

	require.Len(t, merged, 1)
	assert.Equal(t, "s1", merged[0].ChunkID)
}

func TestMergeHybridInterleavesAndDedups(t *testing.T) {
	svc := newTestRetrievalService(&fakeChildIndex{}, newFakeParentRepo(), 0.5)

	semantic := []model.RetrievalResult{semanticResult("s1", 0.9), semanticResult("s2", 0.8)}
	structured := []model.RetrievalResult{structuredResult("course-1"), structuredResult("course-1")}

	merged := svc.Merge(model.QueryHybrid, semantic, structured, 10)

	// 交错合并且按精确 id 去重
	ids := make([]string, 0, len(merged))
	for _, r := range merged {
		ids = append(ids, r.ChunkID)
	}
	assert.Equal(t, []string{"course-1", "s1", "s2"}, ids)
}

func TestMergeRespectsLimit(t *testing.T) {
	svc := newTestRetrievalService(&fakeChildIndex{}, newFakeParentRepo(), 0.5)

	semantic := []model.RetrievalResult{
		semanticResult("s1", 0.9), semanticResult("s2", 0.8), semanticResult("s3", 0.7),
	}
	merged := svc.Merge(model.QuerySemantic, semantic, nil, 2)
	assert.Len(t, merged, 2)
}
