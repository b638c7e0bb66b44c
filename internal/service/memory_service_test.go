package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynet-go/internal/config"
)

func newTestMemoryService(repo *fakeConversationRepo, llm *stubLLM) MemoryService {
	return NewMemoryService(repo, llm, config.MemoryConfig{
		RecentMessages: 10,
		SummaryTrigger: 20,
	})
}

func TestAppendTurnAndLoad(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestMemoryService(repo, &stubLLM{})
	ctx := context.Background()

	require.NoError(t, svc.AppendTurn(ctx, "s1", "first question", "first answer"))
	require.NoError(t, svc.AppendTurn(ctx, "s1", "second question", "second answer"))

	memory, err := svc.Load(ctx, "s1")
	require.NoError(t, err)

	require.Len(t, memory.Recent, 4)
	assert.Equal(t, "user", memory.Recent[0].Role)
	assert.Equal(t, "first question", memory.Recent[0].Content)
	assert.Equal(t, "assistant", memory.Recent[3].Role)
	assert.Equal(t, "second answer", memory.Recent[3].Content)
}

func TestAppendTurnConcurrentNoLoss(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestMemoryService(repo, &stubLLM{response: "summary"})
	ctx := context.Background()

	// 并发追加被会话锁串行化, 每轮都完整落盘
	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("question %d", i)
			a := fmt.Sprintf("answer %d", i)
			assert.NoError(t, svc.AppendTurn(ctx, "s1", q, a))
		}(i)
	}
	wg.Wait()

	messages, err := repo.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, turns*2)

	// 每轮的问答相邻, 问在前答在后
	for i := 0; i < len(messages); i += 2 {
		assert.Equal(t, "user", messages[i].Role)
		assert.Equal(t, "assistant", messages[i+1].Role)
	}
}

func TestLoadUnknownSessionReturnsEmptyMemory(t *testing.T) {
	svc := newTestMemoryService(newFakeConversationRepo(), &stubLLM{})

	memory, err := svc.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, memory.Recent)
	assert.Empty(t, memory.Summary)
}

func TestSummaryTriggerCompactsOlderMessages(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestMemoryService(repo, &stubLLM{response: "the student wants IT courses in Sydney under 20k"})
	ctx := context.Background()

	// 超过触发阈值 (20 条) 后, 较早的消息被压缩进摘要
	for i := 0; i < 12; i++ {
		require.NoError(t, svc.AppendTurn(ctx, "s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	messages, err := repo.GetMessages(ctx, "s1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(messages), 20)

	memory, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, memory.Summary)
	assert.LessOrEqual(t, len(memory.Recent), 10)
}

func TestClearRemovesSession(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := newTestMemoryService(repo, &stubLLM{})
	ctx := context.Background()

	require.NoError(t, svc.AppendTurn(ctx, "s1", "q", "a"))
	require.NoError(t, svc.Clear(ctx, "s1"))

	memory, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, memory.Recent)
	assert.Empty(t, memory.Summary)

	// 清除是幂等的
	require.NoError(t, svc.Clear(ctx, "s1"))
}
