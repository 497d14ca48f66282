package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ai-news/internal/deadline"
	"ai-news/internal/logger"
	"ai-news/internal/model"
)

// ErrorKind 适配器失败类型
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNetwork
	KindStatus
	KindParse
	KindRateLimited
	KindTimeout
	KindDisabled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindParse:
		return "parse"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

var (
	ErrRateLimited = errors.New("upstream rate limit reached")
	ErrDisabled    = errors.New("adapter not configured")
)

// Adapter 单个上游来源
type Adapter interface {
	Origin() model.Origin
	Fetch(ctx context.Context) Result
}

// Searcher 支持关键词查询的来源
type Searcher interface {
	Origin() model.Origin
	Search(ctx context.Context, query string) Result
}

// Result 适配器的返回值,失败时 Articles 为空
type Result struct {
	Origin   model.Origin
	Articles []model.Article
	Kind     ErrorKind
	Err      error
}

func (r Result) OK() bool {
	return r.Kind == KindNone
}

// Classify 将错误映射为 ErrorKind
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var statusErr *StatusError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrDisabled):
		return KindDisabled
	case errors.Is(err, deadline.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &statusErr):
		return KindStatus
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, ErrParse):
		return KindParse
	default:
		return KindNetwork
	}
}

// ErrParse 上游返回了无法解析的内容
var ErrParse = errors.New("malformed upstream payload")

// finish 把 (articles, err) 收敛为 Result,并在失败时记录日志
func finish(log *slog.Logger, origin model.Origin, articles []model.Article, err error) Result {
	if err != nil {
		kind := Classify(err)
		if kind == KindDisabled {
			log.Debug("adapter disabled", "origin", origin)
		} else {
			log.Warn("adapter fetch failed", "origin", origin, "kind", kind, "err", err)
		}
		return Result{Origin: origin, Kind: kind, Err: err}
	}
	return Result{Origin: origin, Articles: articles}
}

// Run 在超时内执行适配器,任何错误或 panic 都收敛为 Result
func Run(ctx context.Context, a Adapter, timeout time.Duration) Result {
	res, err := deadline.Run(ctx, timeout, func(ctx context.Context) (Result, error) {
		return a.Fetch(ctx), nil
	})
	if err != nil {
		return finish(logger.With("adapter"), a.Origin(), nil, err)
	}
	res.Origin = a.Origin()
	return res
}
