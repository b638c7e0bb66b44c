package service

import (
	"context"
	"fmt"
	"sync"

	"studynet-go/internal/errs"
	"studynet-go/internal/model"
	"studynet-go/internal/repository"
	"studynet-go/pkg/llm"
)

// stubLLM 按预设响应回答, chatErr 非空时所有调用失败。
type stubLLM struct {
	response string
	chatErr  error
	calls    int
}

func (s *stubLLM) Chat(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	s.calls++
	if s.chatErr != nil {
		return "", s.chatErr
	}
	return s.response, nil
}

func (s *stubLLM) StreamChat(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, writer llm.ChunkWriter) error {
	s.calls++
	if s.chatErr != nil {
		return s.chatErr
	}
	return writer.WriteChunk([]byte(s.response))
}

// stubEmbedding 为每条文本返回固定维度的向量。
type stubEmbedding struct {
	err error
}

func (s *stubEmbedding) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s *stubEmbedding) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeChildIndex 以内存切片模拟向量索引, SimilaritySearch 返回预设命中。
type fakeChildIndex struct {
	hits    []repository.ScoredChild
	stored  []model.ChildChunk
	cleared bool
	err     error
}

func (f *fakeChildIndex) IndexChildren(ctx context.Context, chunks []model.ChildChunk) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, chunks...)
	return nil
}

func (f *fakeChildIndex) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]repository.ScoredChild, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeChildIndex) DeleteByDocumentID(ctx context.Context, documentID string) error {
	kept := f.stored[:0]
	for _, c := range f.stored {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	f.stored = kept
	return nil
}

func (f *fakeChildIndex) Clear(ctx context.Context) error {
	f.cleared = true
	f.stored = nil
	return nil
}

func (f *fakeChildIndex) Count(ctx context.Context) (int64, error) {
	return int64(len(f.stored)), nil
}

// fakeParentRepo 以内存 map 模拟父块存储。
type fakeParentRepo struct {
	docs    map[string]*model.Document
	parents map[string]*model.ParentChunk
}

func newFakeParentRepo() *fakeParentRepo {
	return &fakeParentRepo{
		docs:    make(map[string]*model.Document),
		parents: make(map[string]*model.ParentChunk),
	}
}

func (f *fakeParentRepo) CreateDocument(doc *model.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeParentRepo) BatchCreateParents(chunks []*model.ParentChunk) error {
	for _, c := range chunks {
		f.parents[c.ID] = c
	}
	return nil
}

func (f *fakeParentRepo) FindParentByID(id string) (*model.ParentChunk, error) {
	c, ok := f.parents[id]
	if !ok {
		return nil, fmt.Errorf("父块 %s: %w", id, errs.ErrNotFound)
	}
	return c, nil
}

func (f *fakeParentRepo) DeleteByDocumentID(documentID string) error {
	for id, c := range f.parents {
		if c.DocumentID == documentID {
			delete(f.parents, id)
		}
	}
	delete(f.docs, documentID)
	return nil
}

func (f *fakeParentRepo) TruncateAll() error {
	f.docs = make(map[string]*model.Document)
	f.parents = make(map[string]*model.ParentChunk)
	return nil
}

func (f *fakeParentRepo) CountParents() (int64, error) {
	return int64(len(f.parents)), nil
}

func (f *fakeParentRepo) CountDocuments() (int64, error) {
	return int64(len(f.docs)), nil
}

func (f *fakeParentRepo) FindDocumentBySource(sourceName string) (*model.Document, error) {
	for _, d := range f.docs {
		if d.SourceName == sourceName {
			return d, nil
		}
	}
	return nil, fmt.Errorf("文档 %s: %w", sourceName, errs.ErrNotFound)
}

// fakeConversationRepo 以内存 map 模拟会话存储。
type fakeConversationRepo struct {
	mu        sync.Mutex
	messages  map[string][]model.ChatMessage
	summaries map[string]string
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		messages:  make(map[string][]model.ChatMessage),
		summaries: make(map[string]string),
	}
}

func (f *fakeConversationRepo) GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[sessionID]
	out := make([]model.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakeConversationRepo) SetMessages(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make([]model.ChatMessage, len(messages))
	copy(stored, messages)
	f.messages[sessionID] = stored
	return nil
}

func (f *fakeConversationRepo) GetSummary(ctx context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaries[sessionID], nil
}

func (f *fakeConversationRepo) SetSummary(ctx context.Context, sessionID string, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[sessionID] = summary
	return nil
}

func (f *fakeConversationRepo) Clear(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, sessionID)
	delete(f.summaries, sessionID)
	return nil
}
