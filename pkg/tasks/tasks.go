// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestTask represents a document ingestion job consumed by the pipeline.
// ObjectName 指向 MinIO 中的原始文件；文本直传时 ObjectName 为空，
// Content 携带原文。
type IngestTask struct {
	DocumentID string            `json:"document_id"`
	ObjectName string            `json:"object_name,omitempty"`
	FileName   string            `json:"file_name,omitempty"`
	Content    string            `json:"content,omitempty"`
	SourceType string            `json:"source_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
