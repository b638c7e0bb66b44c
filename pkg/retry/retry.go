// Package retry 提供统一的外部调用重试策略。
// 所有对 Embedding、LLM、联网搜索 API 的调用都应经由此包包装，
// 避免在各调用点重复实现退避逻辑。
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy 描述一次重试策略：最大尝试次数与退避区间。
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Retryable 判断错误是否可重试，nil 表示全部可重试。
	Retryable func(error) bool
}

// DefaultPolicy 适用于幂等的外部 API 调用。
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Do 按策略执行 op，直到成功、不可重试或尝试次数耗尽。
// ctx 取消时立即返回。
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	wrapped := func() (T, error) {
		v, err := op()
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval

	v, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(p.MaxAttempts),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return v, perm.Unwrap()
		}
	}
	return v, err
}
