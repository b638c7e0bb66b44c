package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// 运行指标的 Redis 键。计数器跨进程重启累计。
const (
	keyTotalQueries   = "metrics:total_queries"
	keyTotalErrors    = "metrics:total_errors"
	keyWebSearchUses  = "metrics:web_search_uses"
	keyLatencySumMs   = "metrics:latency_sum_ms"
	keyLatencySamples = "metrics:latency_samples"
)

// MetricsRepository 记录查询计数与延迟的运行指标。
type MetricsRepository interface {
	RecordQuery(ctx context.Context, latencyMs int64, usedWebSearch bool) error
	RecordError(ctx context.Context) error
	Snapshot(ctx context.Context) (totalQueries, totalErrors, webSearchUses int64, avgLatencyMs float64, err error)
}

type redisMetricsRepository struct {
	redisClient *redis.Client
}

// NewMetricsRepository 创建一个新的 MetricsRepository 实例。
func NewMetricsRepository(redisClient *redis.Client) MetricsRepository {
	return &redisMetricsRepository{redisClient: redisClient}
}

func (r *redisMetricsRepository) RecordQuery(ctx context.Context, latencyMs int64, usedWebSearch bool) error {
	pipe := r.redisClient.Pipeline()
	pipe.Incr(ctx, keyTotalQueries)
	pipe.IncrBy(ctx, keyLatencySumMs, latencyMs)
	pipe.Incr(ctx, keyLatencySamples)
	if usedWebSearch {
		pipe.Incr(ctx, keyWebSearchUses)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record query metrics: %w", err)
	}
	return nil
}

func (r *redisMetricsRepository) RecordError(ctx context.Context) error {
	if err := r.redisClient.Incr(ctx, keyTotalErrors).Err(); err != nil {
		return fmt.Errorf("failed to record error metric: %w", err)
	}
	return nil
}

// Snapshot 汇总当前计数器并计算平均延迟。
func (r *redisMetricsRepository) Snapshot(ctx context.Context) (int64, int64, int64, float64, error) {
	values, err := r.redisClient.MGet(ctx, keyTotalQueries, keyTotalErrors, keyWebSearchUses, keyLatencySumMs, keyLatencySamples).Result()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to read metrics: %w", err)
	}
	nums := make([]int64, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			n, parseErr := strconv.ParseInt(s, 10, 64)
			if parseErr == nil {
				nums[i] = n
			}
		}
	}
	var avg float64
	if nums[4] > 0 {
		avg = float64(nums[3]) / float64(nums[4])
	}
	return nums[0], nums[1], nums[2], avg, nil
}
