package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"studynet-go/internal/errs"
	"studynet-go/internal/model"
	"studynet-go/pkg/log"
)

// ScoredChild 是一条带相似度评分的子块命中。
type ScoredChild struct {
	Chunk model.ChildChunk
	Score float64
}

// ChildChunkIndex 定义了子块向量索引的操作。
type ChildChunkIndex interface {
	IndexChildren(ctx context.Context, chunks []model.ChildChunk) error
	// SimilaritySearch 返回至多 k 条按余弦相似度降序排列的子块，
	// 同分时保持索引内的稳定顺序。
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]ScoredChild, error)
	DeleteByDocumentID(ctx context.Context, documentID string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

type esChildChunkIndex struct {
	client    *elasticsearch.Client
	indexName string
}

// NewChildChunkIndex 创建一个基于 Elasticsearch 的子块索引。
func NewChildChunkIndex(client *elasticsearch.Client, indexName string) ChildChunkIndex {
	return &esChildChunkIndex{client: client, indexName: indexName}
}

// IndexChildren 将子块批量写入索引（bulk），写入即刷新以便立即可检索。
func (i *esChildChunkIndex) IndexChildren(ctx context.Context, chunks []model.ChildChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, chunk := range chunks {
		meta := fmt.Sprintf(`{"index":{"_id":%q}}`, chunk.ChunkID)
		docBytes, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("序列化子块 %s 失败: %w", chunk.ChunkID, err)
		}
		buf.WriteString(meta)
		buf.WriteByte('\n')
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := i.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		i.client.Bulk.WithContext(ctx),
		i.client.Bulk.WithIndex(i.indexName),
		i.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk 写入子块失败: %w: %v", errs.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("bulk 写入子块时 Elasticsearch 返回错误: %s", string(body))
		return fmt.Errorf("bulk 写入子块被拒绝: %w", errs.ErrStoreUnavailable)
	}
	return nil
}

// SimilaritySearch 执行 knn 检索。
func (i *esChildChunkIndex) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]ScoredChild, error) {
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
		},
		"size":    k,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("序列化 knn 查询失败: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.indexName),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w: %v", errs.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("向量检索返回错误 [%s]: %s: %w", res.Status(), string(body), errs.ErrStoreUnavailable)
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.ChildChunk `json:"_source"`
				Score  float64          `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}

	results := make([]ScoredChild, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, ScoredChild{Chunk: hit.Source, Score: hit.Score})
	}
	return results, nil
}

// DeleteByDocumentID 删除某文档的全部子块（重新摄取前的幂等清理）。
func (i *esChildChunkIndex) DeleteByDocumentID(ctx context.Context, documentID string) error {
	query := fmt.Sprintf(`{"query":{"term":{"document_id":%q}}}`, documentID)
	res, err := i.client.DeleteByQuery(
		[]string{i.indexName},
		strings.NewReader(query),
		i.client.DeleteByQuery.WithContext(ctx),
		i.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("删除文档 %s 的子块失败: %w", documentID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("删除文档 %s 的子块返回错误: %s", documentID, res.String())
	}
	return nil
}

// Clear 删除索引内全部子块。并发的检索可能看到部分或空索引，这是允许的。
func (i *esChildChunkIndex) Clear(ctx context.Context) error {
	res, err := i.client.DeleteByQuery(
		[]string{i.indexName},
		strings.NewReader(`{"query":{"match_all":{}}}`),
		i.client.DeleteByQuery.WithContext(ctx),
		i.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("清空子块索引失败: %w: %v", errs.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("清空子块索引返回错误: %s", res.String())
	}
	return nil
}

// Count 返回索引内子块总数。
func (i *esChildChunkIndex) Count(ctx context.Context) (int64, error) {
	res, err := i.client.Count(
		i.client.Count.WithContext(ctx),
		i.client.Count.WithIndex(i.indexName),
	)
	if err != nil {
		return 0, fmt.Errorf("统计子块数量失败: %w", err)
	}
	defer res.Body.Close()

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("解析计数响应失败: %w", err)
	}
	return countResp.Count, nil
}
