package model

import "time"

// ChatMessage 代表会话中的一条消息，仅按时间戳排序。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionMemory 是返回给调用方的会话记忆视图：
// 较早的消息被摘要后只保留 Summary，Recent 保留最近若干条原文。
type SessionMemory struct {
	SessionID string        `json:"session_id"`
	Summary   string        `json:"summary,omitempty"`
	Recent    []ChatMessage `json:"recent"`
}
