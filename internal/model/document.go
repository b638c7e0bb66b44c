// Package model 定义了与数据库表和 ES 索引对应的 Go 结构体。
package model

import "time"

// Document 代表一个已摄取的来源单元（一份 PDF、一段粘贴文本）。
// 入库后不可变，仅支持整库清空时删除。
type Document struct {
	ID         string    `gorm:"primaryKey;type:varchar(36);column:id" json:"id"`
	SourceName string    `gorm:"type:varchar(255);column:source_name" json:"sourceName"`
	SourceType string    `gorm:"type:varchar(32);column:source_type" json:"sourceType"`
	ChunkCount int       `gorm:"column:chunk_count" json:"chunkCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Document) TableName() string {
	return "documents"
}

// ParentChunk 是文档的大跨度分块（约 1500 字符），为 LLM 提供周边上下文。
// 摄取时创建，之后不再修改。
type ParentChunk struct {
	ID          string `gorm:"primaryKey;type:varchar(36);column:id" json:"id"`
	DocumentID  string `gorm:"type:varchar(36);not null;index;column:document_id" json:"documentId"`
	Seq         int    `gorm:"not null;column:seq" json:"seq"`
	TextContent string `gorm:"type:text;column:text_content" json:"textContent"`
	SourceName  string `gorm:"type:varchar(255);column:source_name" json:"sourceName"`
}

func (ParentChunk) TableName() string {
	return "parent_chunks"
}

// ChildChunk 是嵌套在父块内部的小跨度分块（约 500 字符），用于精确向量匹配。
// 其字符区间必须完全落在父块区间内，保证上下文扩展的正确性。
// 子块连同向量存储在 Elasticsearch 中，父块的生命周期由父块所有。
type ChildChunk struct {
	ChunkID      string    `json:"chunk_id"`
	ParentID     string    `json:"parent_id"`
	DocumentID   string    `json:"document_id"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector,omitempty"`
	ModelVersion string    `json:"model_version"`
	SourceName   string    `json:"source_name"`
	SourceType   string    `json:"source_type"`
}

// SourceType 标识检索结果的来源。
type SourceType string

const (
	SourceKnowledgeBase SourceType = "knowledge_base"
	SourceStructured    SourceType = "structured"
	SourceWeb           SourceType = "web"
)

// RetrievalResult 是一条带评分的检索候选，不落库。
// 结构化记录以伪分块形式进入同一类型，便于统一合并与重排。
type RetrievalResult struct {
	ChunkID       string     `json:"chunkId"`
	Content       string     `json:"content"`
	ParentContent string     `json:"parentContent,omitempty"`
	SourceName    string     `json:"sourceName"`
	Source        SourceType `json:"source"`
	Score         float64    `json:"score"`
}

// KnowledgeBaseStatus 是知识库计数快照，并发写入下允许近似值。
type KnowledgeBaseStatus struct {
	ParentChunks   int64 `json:"parent_chunks"`
	ChildChunks    int64 `json:"child_chunks"`
	TotalDocuments int64 `json:"total_documents"`
}
