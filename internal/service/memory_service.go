package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"studynet-go/internal/config"
	"studynet-go/internal/model"
	"studynet-go/internal/repository"
	"studynet-go/pkg/llm"
	"studynet-go/pkg/log"
)

// MemoryService 定义了会话记忆操作：追加、读取与清除。
type MemoryService interface {
	// AppendTurn 按到达顺序追加一轮问答。同一会话的并发追加被串行化。
	AppendTurn(ctx context.Context, sessionID, userQuery, answer string) error
	// Load 读取会话记忆：摘要加最近 N 条消息。
	Load(ctx context.Context, sessionID string) (model.SessionMemory, error)
	Clear(ctx context.Context, sessionID string) error
}

type memoryService struct {
	conversationRepo repository.ConversationRepository
	llmClient        llm.Client
	recentMessages   int
	summaryTrigger   int

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// NewMemoryService 创建一个新的 MemoryService 实例。
func NewMemoryService(conversationRepo repository.ConversationRepository, llmClient llm.Client, cfg config.MemoryConfig) MemoryService {
	return &memoryService{
		conversationRepo: conversationRepo,
		llmClient:        llmClient,
		recentMessages:   cfg.RecentMessages,
		summaryTrigger:   cfg.SummaryTrigger,
		sessions:         make(map[string]*sync.Mutex),
	}
}

func (s *memoryService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessions[sessionID] = lock
	}
	return lock
}

// AppendTurn 追加一轮问答。消息数超过触发阈值时将较早的消息压缩进摘要。
func (s *memoryService) AppendTurn(ctx context.Context, sessionID, userQuery, answer string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	messages, err := s.conversationRepo.GetMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session messages failed: %w", err)
	}

	now := time.Now()
	messages = append(messages,
		model.ChatMessage{Role: "user", Content: userQuery, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)

	if len(messages) > s.summaryTrigger {
		messages = s.summarize(ctx, sessionID, messages)
	}

	if err := s.conversationRepo.SetMessages(ctx, sessionID, messages); err != nil {
		return fmt.Errorf("store session messages failed: %w", err)
	}
	return nil
}

const summarizePrompt = `Summarize the following conversation between a student and an education advisor in at most 5 sentences.
Keep concrete facts the student has stated: budget, preferred cities, fields of study, study level.

Previous summary (may be empty): %s

Conversation:
%s`

// summarize 把超出保留窗口的旧消息压缩进滚动摘要。LLM 失败时仅截断，不丢摘要。
func (s *memoryService) summarize(ctx context.Context, sessionID string, messages []model.ChatMessage) []model.ChatMessage {
	keep := s.recentMessages
	if keep >= len(messages) {
		return messages
	}
	older := messages[:len(messages)-keep]
	recent := messages[len(messages)-keep:]

	existing, err := s.conversationRepo.GetSummary(ctx, sessionID)
	if err != nil {
		log.Warnf("[MemoryService] 读取会话摘要失败: %v", err)
		existing = ""
	}

	var transcript strings.Builder
	for _, m := range older {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}
	resp, err := s.llmClient.Chat(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(summarizePrompt, existing, transcript.String())},
	}, nil)
	if err != nil {
		log.Warnf("[MemoryService] 会话摘要生成失败, 仅截断历史: %v", err)
		return recent
	}

	if err := s.conversationRepo.SetSummary(ctx, sessionID, strings.TrimSpace(resp)); err != nil {
		log.Warnf("[MemoryService] 写入会话摘要失败: %v", err)
	}
	return recent
}

// Load 读取会话记忆。无历史的会话返回空记忆而非错误。
func (s *memoryService) Load(ctx context.Context, sessionID string) (model.SessionMemory, error) {
	messages, err := s.conversationRepo.GetMessages(ctx, sessionID)
	if err != nil {
		return model.SessionMemory{}, fmt.Errorf("load session messages failed: %w", err)
	}
	summary, err := s.conversationRepo.GetSummary(ctx, sessionID)
	if err != nil {
		return model.SessionMemory{}, fmt.Errorf("load session summary failed: %w", err)
	}
	if len(messages) > s.recentMessages {
		messages = messages[len(messages)-s.recentMessages:]
	}
	return model.SessionMemory{SessionID: sessionID, Summary: summary, Recent: messages}, nil
}

// Clear 清除会话记忆与锁。
func (s *memoryService) Clear(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.conversationRepo.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session failed: %w", err)
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}
