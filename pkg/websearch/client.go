// Package websearch 提供 Tavily 联网搜索的客户端。
// 知识库检索为空或结果过弱时，作为兜底数据源参与上下文组装。
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"studynet-go/internal/config"
	"studynet-go/internal/errs"
	"studynet-go/pkg/retry"
)

// Result 是一条联网搜索结果。
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Client defines the interface for a web search client.
type Client interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

type tavilyClient struct {
	cfg    config.WebSearchConfig
	client *http.Client
	policy retry.Policy
}

// NewClient 构造 Tavily 搜索客户端。
func NewClient(cfg config.WebSearchConfig) Client {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = 2
	policy.Retryable = errs.Retryable
	return &tavilyClient{
		cfg:    cfg,
		client: &http.Client{},
		policy: policy,
	}
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search 执行一次联网搜索。
func (c *tavilyClient) Search(ctx context.Context, query string) ([]Result, error) {
	return retry.Do(ctx, c.policy, func() ([]Result, error) {
		return c.searchOnce(ctx, query)
	})
}

func (c *tavilyClient) searchOnce(ctx context.Context, query string) ([]Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSec)*time.Second)
	defer cancel()

	reqBody := searchRequest{
		APIKey:      c.cfg.APIKey,
		Query:       query,
		MaxResults:  c.cfg.MaxResults,
		SearchDepth: "advanced",
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化搜索请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, "POST", c.cfg.BaseURL+"/search", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("创建搜索请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("web search: %w", errs.ErrTimeout)
		}
		return nil, fmt.Errorf("调用联网搜索失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("联网搜索返回非 200 状态码: %s", resp.Status)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("解析搜索响应失败: %w", err)
	}
	return searchResp.Results, nil
}
