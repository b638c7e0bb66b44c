// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"studynet-go/internal/model"
)

// ConversationRepository 定义了会话记忆的持久化操作接口。
type ConversationRepository interface {
	GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	SetMessages(ctx context.Context, sessionID string, messages []model.ChatMessage) error
	GetSummary(ctx context.Context, sessionID string) (string, error)
	SetSummary(ctx context.Context, sessionID string, summary string) error
	Clear(ctx context.Context, sessionID string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl}
}

func messagesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:messages", sessionID)
}

func summaryKey(sessionID string) string {
	return fmt.Sprintf("session:%s:summary", sessionID)
}

// GetMessages 从 Redis 获取会话消息，尚无历史时返回空切片。
func (r *redisConversationRepository) GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, messagesKey(sessionID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session messages: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session messages: %w", err)
	}
	return messages, nil
}

// SetMessages 将整段会话消息写回 Redis 并刷新过期时间。
func (r *redisConversationRepository) SetMessages(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal session messages: %w", err)
	}
	if err := r.redisClient.Set(ctx, messagesKey(sessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session messages: %w", err)
	}
	return nil
}

func (r *redisConversationRepository) GetSummary(ctx context.Context, sessionID string) (string, error) {
	summary, err := r.redisClient.Get(ctx, summaryKey(sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session summary: %w", err)
	}
	return summary, nil
}

func (r *redisConversationRepository) SetSummary(ctx context.Context, sessionID string, summary string) error {
	if err := r.redisClient.Set(ctx, summaryKey(sessionID), summary, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session summary: %w", err)
	}
	return nil
}

// Clear 删除指定会话的全部记忆。
func (r *redisConversationRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, messagesKey(sessionID), summaryKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
