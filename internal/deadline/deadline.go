// Package deadline 为阻塞操作提供统一的超时包装
package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout 操作在给定时间内未完成
var ErrTimeout = errors.New("operation timed out")

// Run 在 d 时间内执行 fn,超时返回 ErrTimeout。
// fn 收到的 ctx 会在超时后取消;fn 本身可能在返回后继续运行直至察觉取消。
func Run[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return zero, ctx.Err()
	}
}

// Do 与 Run 相同,用于无返回值的操作
func Do(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
