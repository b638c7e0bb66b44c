package model

// QueryRequest 是 /query 接口的请求体。
type QueryRequest struct {
	Query        string `json:"query" binding:"required"`
	SessionID    string `json:"session_id"`
	UseWebSearch bool   `json:"use_web_search"`
}

// SourceDTO 是返回给前端的单条引用来源。
type SourceDTO struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// QueryResponse 是 /query 接口的响应体。
type QueryResponse struct {
	Answer          string      `json:"answer"`
	Sources         []SourceDTO `json:"sources"`
	ConfidenceScore float64     `json:"confidence_score"`
	WebSearchUsed   bool        `json:"web_search_used"`
	SessionID       string      `json:"session_id"`
}

// UploadTextRequest 是 /upload/text 接口的请求体。
type UploadTextRequest struct {
	Content  string            `json:"content" binding:"required"`
	Metadata map[string]string `json:"metadata"`
}

// UploadResponse 是上传接口的响应体。
// 部分失败时 ChunksCreated 报告失败前已成功写入的分块数。
type UploadResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	DocumentID    string `json:"document_id,omitempty"`
	ChunksCreated int    `json:"chunks_created"`
}

// ErrorResponse 是统一的结构化错误响应。
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetricsSnapshot 是 /metrics 的响应体。
type MetricsSnapshot struct {
	TotalQueries   int64   `json:"total_queries"`
	TotalErrors    int64   `json:"total_errors"`
	WebSearchUses  int64   `json:"web_search_uses"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	TotalDocuments int64   `json:"total_documents"`
}
