package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"studynet-go/internal/config"
	"studynet-go/internal/errs"
	"studynet-go/internal/model"
	"studynet-go/pkg/llm"
	"studynet-go/pkg/log"
	"studynet-go/pkg/retry"
	"studynet-go/pkg/websearch"
)

// AnswerService 定义了基于检索上下文的回答生成操作。
type AnswerService interface {
	// Generate 生成回答，返回回答文本、被引用的来源与置信度。
	Generate(ctx context.Context, query string, results []model.RetrievalResult, memory model.SessionMemory) (Answer, error)
	// StreamGenerate 流式生成回答，逐块写入 writer。
	StreamGenerate(ctx context.Context, query string, results []model.RetrievalResult, memory model.SessionMemory, writer llm.ChunkWriter) error
	// WebSearch 当知识库无结果时检索互联网作为补充上下文。
	WebSearch(ctx context.Context, query string) []model.RetrievalResult
}

// Answer 是一次生成的完整结果。
type Answer struct {
	Text       string
	Sources    []model.RetrievalResult
	Confidence float64
}

type answerService struct {
	llmClient       llm.Client
	webSearchClient websearch.Client // nil 表示未配置
	contextBudget   int
	callTimeout     time.Duration
	rules           string
	refStart        string
	refEnd          string
	noResultText    string
}

// NewAnswerService 创建一个新的 AnswerService 实例。webSearchClient 可以为 nil，
// 提示词相关配置缺省时使用内置默认值。
func NewAnswerService(llmClient llm.Client, webSearchClient websearch.Client, retrievalCfg config.RetrievalConfig, llmCfg config.LLMConfig) AnswerService {
	timeout := time.Duration(llmCfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	rules := llmCfg.Prompt.Rules
	if rules == "" {
		rules = defaultRules
	}
	noResultText := llmCfg.Prompt.NoResultText
	if noResultText == "" {
		noResultText = defaultNoResultText
	}
	return &answerService{
		llmClient:       llmClient,
		webSearchClient: webSearchClient,
		contextBudget:   retrievalCfg.ContextBudgetRunes,
		callTimeout:     timeout,
		rules:           rules,
		refStart:        llmCfg.Prompt.RefStart,
		refEnd:          llmCfg.Prompt.RefEnd,
		noResultText:    noResultText,
	}
}

const defaultRules = `You are StudyNet, an expert advisor on studying in Australia.
Answer using ONLY the numbered context passages below. Cite passages with [n] markers.
If the context does not contain the answer, say so plainly instead of guessing.
Keep answers concise and concrete: course names, fees in AUD, cities, deadlines.`

const defaultNoResultText = "No context passages were retrieved for this question."

// buildMessages 组装系统规则、会话记忆与编号上下文，上下文受字符预算约束。
func (s *answerService) buildMessages(query string, results []model.RetrievalResult, memory model.SessionMemory) ([]llm.Message, []model.RetrievalResult) {
	var ctxBuilder strings.Builder
	var included []model.RetrievalResult
	used := 0
	for _, r := range results {
		content := r.ParentContent
		if content == "" {
			content = r.Content
		}
		runes := len([]rune(content))
		if used+runes > s.contextBudget && len(included) > 0 {
			break
		}
		fmt.Fprintf(&ctxBuilder, "[%d] (%s) %s\n\n", len(included)+1, r.Source, content)
		included = append(included, r)
		used += runes
	}

	system := s.rules
	if memory.Summary != "" {
		system += "\n\nConversation summary so far:\n" + memory.Summary
	}
	if ctxBuilder.Len() > 0 {
		block := ctxBuilder.String()
		if s.refStart != "" {
			block = s.refStart + "\n" + block
		}
		if s.refEnd != "" {
			block += s.refEnd
		}
		system += "\n\nContext passages:\n" + block
	} else {
		system += "\n\n" + s.noResultText
	}

	messages := []llm.Message{{Role: "system", Content: system}}
	for _, m := range memory.Recent {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: query})
	return messages, included
}

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// extractCited 解析回答中的 [n] 引用标记，未标注任何引用时回退前 3 条上下文。
func extractCited(answer string, included []model.RetrievalResult) []model.RetrievalResult {
	seen := make(map[int]bool)
	var cited []model.RetrievalResult
	for _, m := range citationRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(included) || seen[n] {
			continue
		}
		seen[n] = true
		cited = append(cited, included[n-1])
	}
	if len(cited) == 0 {
		limit := 3
		if len(included) < limit {
			limit = len(included)
		}
		cited = included[:limit]
	}
	return cited
}

// confidence 根据最高检索分计算置信度，无上下文时为固定低值。
func confidence(included []model.RetrievalResult) float64 {
	if len(included) == 0 {
		return 0.2
	}
	top := 0.0
	for _, r := range included {
		if r.Score > top {
			top = r.Score
		}
	}
	conf := 0.3 + 0.7*top
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// Generate 生成回答。LLM 调用带重试与超时，重试耗尽后返回 ErrGeneration。
func (s *answerService) Generate(ctx context.Context, query string, results []model.RetrievalResult, memory model.SessionMemory) (Answer, error) {
	messages, included := s.buildMessages(query, results, memory)

	policy := retry.DefaultPolicy()
	policy.Retryable = errs.Retryable
	text, err := retry.Do(ctx, policy, func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
		return s.llmClient.Chat(callCtx, messages, nil)
	})
	if err != nil {
		return Answer{}, fmt.Errorf("answer generation failed: %v: %w", err, errs.ErrGeneration)
	}

	return Answer{
		Text:       strings.TrimSpace(text),
		Sources:    extractCited(text, included),
		Confidence: confidence(included),
	}, nil
}

// StreamGenerate 流式生成。流式路径不重试，中断由调用方感知。
func (s *answerService) StreamGenerate(ctx context.Context, query string, results []model.RetrievalResult, memory model.SessionMemory, writer llm.ChunkWriter) error {
	messages, _ := s.buildMessages(query, results, memory)
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.llmClient.StreamChat(callCtx, messages, nil, writer); err != nil {
		return fmt.Errorf("streaming generation failed: %v: %w", err, errs.ErrGeneration)
	}
	return nil
}

// WebSearch 检索互联网补充上下文。失败静默降级为空结果。
func (s *answerService) WebSearch(ctx context.Context, query string) []model.RetrievalResult {
	if s.webSearchClient == nil {
		return nil
	}
	searchResults, err := s.webSearchClient.Search(ctx, query)
	if err != nil {
		log.Warnf("[AnswerService] 网络搜索失败: %v", err)
		return nil
	}
	results := make([]model.RetrievalResult, 0, len(searchResults))
	for i, r := range searchResults {
		results = append(results, model.RetrievalResult{
			ChunkID:       fmt.Sprintf("web-%d", i),
			Content:       r.Content,
			ParentContent: r.Content,
			SourceName:    r.URL,
			Source:        model.SourceWeb,
			Score:         r.Score,
		})
	}
	return results
}
