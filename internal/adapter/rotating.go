package adapter

import (
	"context"
	"sync"
	"time"

	"ai-news/internal/model"
)

// Rotating 把搜索类来源按分组轮换:每次只刷新一个分组,返回所有分组最近一次结果的并集
type Rotating struct {
	searcher Searcher
	groups   [][]string
	now      func() time.Time

	mu      sync.Mutex
	results map[int][]model.Article
	limited bool
}

func NewRotating(searcher Searcher, groups [][]string) *Rotating {
	return &Rotating{
		searcher: searcher,
		groups:   groups,
		now:      time.Now,
		results:  make(map[int][]model.Article),
	}
}

func (r *Rotating) Origin() model.Origin {
	return r.searcher.Origin()
}

// Groups 分组数量
func (r *Rotating) Groups() int {
	return len(r.groups)
}

// CurrentGroup 按小时取模
func (r *Rotating) CurrentGroup() int {
	if len(r.groups) == 0 {
		return 0
	}
	return r.now().Hour() % len(r.groups)
}

func (r *Rotating) Fetch(ctx context.Context) Result {
	return r.FetchGroup(ctx, r.CurrentGroup())
}

// FetchGroup 刷新指定分组;限流或失败时保留该分组上一次的结果
func (r *Rotating) FetchGroup(ctx context.Context, group int) Result {
	if len(r.groups) == 0 {
		return Result{Origin: r.Origin(), Kind: KindDisabled, Err: ErrDisabled}
	}
	group = ((group % len(r.groups)) + len(r.groups)) % len(r.groups)

	var (
		fresh   []model.Article
		lastBad Result
		anyOK   bool
	)
	for _, query := range r.groups[group] {
		res := r.searcher.Search(ctx, query)
		if !res.OK() {
			lastBad = res
			// 禁用或限流时继续请求同组其他关键词没有意义
			if res.Kind == KindDisabled || res.Kind == KindRateLimited {
				break
			}
			continue
		}
		anyOK = true
		fresh = append(fresh, res.Articles...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if anyOK {
		r.results[group] = fresh
		r.limited = false
	} else if lastBad.Kind == KindRateLimited {
		r.limited = true
	}

	merged := r.mergedLocked()
	if !anyOK && len(merged) == 0 {
		lastBad.Origin = r.Origin()
		return lastBad
	}
	return Result{Origin: r.Origin(), Articles: merged}
}

// RateLimited 最近一次刷新是否因限流失败
func (r *Rotating) RateLimited() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limited
}

func (r *Rotating) mergedLocked() []model.Article {
	var all []model.Article
	for i := range r.groups {
		all = append(all, r.results[i]...)
	}
	return all
}
