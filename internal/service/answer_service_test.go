package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynet-go/internal/config"
	"studynet-go/internal/errs"
	"studynet-go/internal/model"
)

func newTestAnswerService(llm *stubLLM) AnswerService {
	return NewAnswerService(llm, nil,
		config.RetrievalConfig{ContextBudgetRunes: 6000},
		config.LLMConfig{TimeoutSec: 5},
	)
}

func contextResults() []model.RetrievalResult {
	return []model.RetrievalResult{
		{ChunkID: "c1", Content: "UNSW offers a Master of IT.", ParentContent: "UNSW offers a Master of IT for $48,000 a year.", Source: model.SourceKnowledgeBase, Score: 0.9},
		{ChunkID: "c2", Content: "Monash has scholarships.", ParentContent: "Monash has merit scholarships for international students.", Source: model.SourceKnowledgeBase, Score: 0.7},
		{ChunkID: "c3", Content: "Visa processing takes weeks.", ParentContent: "Student visa processing usually takes several weeks.", Source: model.SourceKnowledgeBase, Score: 0.5},
		{ChunkID: "c4", Content: "Sydney has many campuses.", ParentContent: "Sydney hosts campuses of several universities.", Source: model.SourceKnowledgeBase, Score: 0.4},
	}
}

func TestGenerateConfidenceFromTopScore(t *testing.T) {
	svc := newTestAnswerService(&stubLLM{response: "UNSW offers a Master of IT [1]."})

	answer, err := svc.Generate(context.Background(), "IT at UNSW?", contextResults(), model.SessionMemory{})
	require.NoError(t, err)

	// conf = 0.3 + 0.7*0.9
	assert.InDelta(t, 0.93, answer.Confidence, 1e-9)
}

func TestGenerateNoContextLowConfidence(t *testing.T) {
	svc := newTestAnswerService(&stubLLM{response: "I could not find relevant information."})

	answer, err := svc.Generate(context.Background(), "anything?", nil, model.SessionMemory{})
	require.NoError(t, err)

	assert.InDelta(t, 0.2, answer.Confidence, 1e-9)
	assert.Empty(t, answer.Sources)
}

func TestGenerateCitedSources(t *testing.T) {
	svc := newTestAnswerService(&stubLLM{response: "Monash has scholarships [2], and visas take weeks [3]."})

	answer, err := svc.Generate(context.Background(), "scholarships?", contextResults(), model.SessionMemory{})
	require.NoError(t, err)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "c2", answer.Sources[0].ChunkID)
	assert.Equal(t, "c3", answer.Sources[1].ChunkID)
}

func TestGenerateNoCitationsFallsBackToTopThree(t *testing.T) {
	svc := newTestAnswerService(&stubLLM{response: "An answer with no citation markers."})

	answer, err := svc.Generate(context.Background(), "question", contextResults(), model.SessionMemory{})
	require.NoError(t, err)

	require.Len(t, answer.Sources, 3)
	assert.Equal(t, "c1", answer.Sources[0].ChunkID)
}

func TestGenerateInvalidCitationIndexIgnored(t *testing.T) {
	svc := newTestAnswerService(&stubLLM{response: "See [1] and the imaginary [9]."})

	answer, err := svc.Generate(context.Background(), "question", contextResults(), model.SessionMemory{})
	require.NoError(t, err)

	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "c1", answer.Sources[0].ChunkID)
}

func TestGenerateLLMFailureReturnsGenerationError(t *testing.T) {
	svc := newTestAnswerService(&stubLLM{chatErr: errors.New("provider down")})

	_, err := svc.Generate(context.Background(), "question", contextResults(), model.SessionMemory{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrGeneration))
}

func TestBuildMessagesRespectsContextBudget(t *testing.T) {
	svc := NewAnswerService(&stubLLM{}, nil,
		config.RetrievalConfig{ContextBudgetRunes: 80},
		config.LLMConfig{TimeoutSec: 5},
	).(*answerService)

	results := contextResults()
	messages, included := svc.buildMessages("question", results, model.SessionMemory{})

	// 预算只容得下部分上下文, 但至少包含一条
	assert.NotEmpty(t, included)
	assert.Less(t, len(included), len(results))
	require.NotEmpty(t, messages)
	assert.Equal(t, "system", messages[0].Role)
}

func TestBuildMessagesIncludesMemory(t *testing.T) {
	svc := newTestAnswerService(&stubLLM{}).(*answerService)

	memory := model.SessionMemory{
		Summary: "student wants IT in Sydney",
		Recent: []model.ChatMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	}
	messages, _ := svc.buildMessages("follow-up", contextResults(), memory)

	assert.True(t, strings.Contains(messages[0].Content, "student wants IT in Sydney"))
	// system + 2 history + user
	require.Len(t, messages, 4)
	assert.Equal(t, "follow-up", messages[len(messages)-1].Content)
}

func TestBuildMessagesUsesConfiguredPrompt(t *testing.T) {
	svc := NewAnswerService(&stubLLM{}, nil,
		config.RetrievalConfig{ContextBudgetRunes: 6000},
		config.LLMConfig{
			TimeoutSec: 5,
			Prompt: config.LLMPromptConfig{
				Rules:        "Custom counselor rules.",
				RefStart:     "<<REF>>",
				RefEnd:       "<<END>>",
				NoResultText: "(no retrieval results this turn)",
			},
		},
	).(*answerService)

	withContext, _ := svc.buildMessages("question", contextResults(), model.SessionMemory{})
	assert.True(t, strings.HasPrefix(withContext[0].Content, "Custom counselor rules."))
	assert.Contains(t, withContext[0].Content, "<<REF>>")
	assert.Contains(t, withContext[0].Content, "<<END>>")

	withoutContext, _ := svc.buildMessages("question", nil, model.SessionMemory{})
	assert.Contains(t, withoutContext[0].Content, "(no retrieval results this turn)")
	assert.NotContains(t, withoutContext[0].Content, "<<REF>>")
}

func TestBuildMessagesDefaultPromptFallback(t *testing.T) {
	svc := newTestAnswerService(&stubLLM{}).(*answerService)

	messages, _ := svc.buildMessages("question", nil, model.SessionMemory{})
	assert.True(t, strings.HasPrefix(messages[0].Content, "You are StudyNet"))
	assert.Contains(t, messages[0].Content, "No context passages were retrieved")
}
