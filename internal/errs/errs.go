// Package errs 定义了检索管线的错误分类。
// 处理器根据错误种类映射到对应的 HTTP 状态码。
package errs

import "errors"

var (
	// ErrInvalidQuery 表示用户输入不合法（可由用户自行修正）。
	ErrInvalidQuery = errors.New("invalid query")
	// ErrStoreUnavailable 表示向量索引或结构化存储暂时不可达（可重试）。
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTimeout 表示外部调用超时，上游按软失败处理。
	ErrTimeout = errors.New("timeout")
	// ErrNotFound 表示父块或文档已被并发删除，调用方跳过该结果即可。
	ErrNotFound = errors.New("not found")
	// ErrIngestion 表示文档内容无法入库（空文本、零分块等）。
	ErrIngestion = errors.New("ingestion failed")
	// ErrGeneration 表示 LLM 重试后仍然失败，仅该次请求失败。
	ErrGeneration = errors.New("generation failed")
)

// Kind 返回错误对应的机器可读种类标识，未匹配时返回 "internal"。
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIngestion):
		return "ingestion_error"
	case errors.Is(err, ErrGeneration):
		return "generation_error"
	default:
		return "internal"
	}
}

// Retryable 判断该错误种类是否值得调用方重试。
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}
