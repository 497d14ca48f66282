package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ai-news/config"
	"ai-news/internal/adapter"
	"ai-news/internal/logger"
	"ai-news/internal/model"
)

// Rotator 按分组轮换的搜索类来源
type Rotator interface {
	adapter.Adapter
	FetchGroup(ctx context.Context, group int) adapter.Result
	CurrentGroup() int
	Groups() int
	RateLimited() bool
}

type poolState struct {
	adapter    adapter.Adapter
	articles   []model.Article
	lastFetch  time.Time
	refreshing bool
	lastKind   adapter.ErrorKind
	lastErr    string
}

// PoolStatus 单个来源池的状态
type PoolStatus struct {
	Origin      model.Origin `json:"origin"`
	Articles    int          `json:"articles"`
	LastFetch   *time.Time   `json:"lastFetch,omitempty"`
	Refreshing  bool         `json:"refreshing"`
	Stale       bool         `json:"stale"`
	LastError   string       `json:"lastError,omitempty"`
	ErrorKind   string       `json:"errorKind,omitempty"`
	Rotating    bool         `json:"rotating"`
	RateLimited bool         `json:"rateLimited,omitempty"`
}

// Aggregator 管理各来源池:过期后后台刷新,冷启动时有限等待一次
type Aggregator struct {
	mu     sync.RWMutex
	pools  map[model.Origin]*poolState
	order  []model.Origin
	flight singleflight.Group

	fetchTimeout  time.Duration
	staleAfter    time.Duration
	coldStartWait time.Duration
	now           func() time.Time
	log           *slog.Logger

	bg     context.Context
	cancel context.CancelFunc
}

func NewAggregator(cfg config.CacheConfig, adapters ...adapter.Adapter) *Aggregator {
	bg, cancel := context.WithCancel(context.Background())
	a := &Aggregator{
		pools:         make(map[model.Origin]*poolState, len(adapters)),
		fetchTimeout:  cfg.FetchTimeout,
		staleAfter:    cfg.Duration,
		coldStartWait: cfg.ColdStartWait,
		now:           time.Now,
		log:           logger.With("aggregator"),
		bg:            bg,
		cancel:        cancel,
	}
	for _, ad := range adapters {
		if ad == nil {
			continue
		}
		origin := ad.Origin()
		if _, dup := a.pools[origin]; dup {
			a.log.Warn("duplicate adapter ignored", "origin", origin)
			continue
		}
		a.pools[origin] = &poolState{adapter: ad}
		a.order = append(a.order, origin)
	}
	return a
}

// Start 启动后台的首次填充
func (a *Aggregator) Start() {
	a.log.Info("aggregator started", "pools", len(a.order))
	for _, origin := range a.order {
		a.trigger(origin)
	}
}

// Stop 取消后台刷新
func (a *Aggregator) Stop() {
	a.cancel()
}

// Origins 来源池的固定顺序
func (a *Aggregator) Origins() []model.Origin {
	return append([]model.Origin(nil), a.order...)
}

// Pools 返回各池当前数据。过期的池在后台刷新,从未填充过的池同步等待至多 coldStartWait。
func (a *Aggregator) Pools(ctx context.Context) map[model.Origin][]model.Article {
	var cold, stale []model.Origin
	now := a.now()

	a.mu.RLock()
	for _, origin := range a.order {
		st := a.pools[origin]
		switch {
		case st.lastFetch.IsZero():
			cold = append(cold, origin)
		case now.Sub(st.lastFetch) > a.staleAfter && !a.isRotating(st):
			stale = append(stale, origin)
		}
	}
	a.mu.RUnlock()

	for _, origin := range stale {
		a.trigger(origin)
	}
	if len(cold) > 0 {
		a.log.Info("cold start fill", "pools", cold)
		a.wait(ctx, a.coldStartWait, cold)
	}
	return a.Snapshot()
}

// Snapshot 返回各池数据的拷贝,不触发刷新
func (a *Aggregator) Snapshot() map[model.Origin][]model.Article {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[model.Origin][]model.Article, len(a.pools))
	for origin, st := range a.pools {
		out[origin] = append([]model.Article(nil), st.articles...)
	}
	return out
}

// Counts 各池文章数量
func (a *Aggregator) Counts() map[model.Origin]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[model.Origin]int, len(a.pools))
	for origin, st := range a.pools {
		out[origin] = len(st.articles)
	}
	return out
}

// Refresh 并行刷新所有非轮换池,等待全部完成
func (a *Aggregator) Refresh(ctx context.Context) {
	var origins []model.Origin
	a.mu.RLock()
	for _, origin := range a.order {
		st := a.pools[origin]
		if !a.isRotating(st) || st.lastFetch.IsZero() {
			origins = append(origins, origin)
		}
	}
	a.mu.RUnlock()

	a.wait(ctx, 0, origins)
}

// ForceRefresh 忽略过期判断,同步刷新所有池
func (a *Aggregator) ForceRefresh(ctx context.Context) {
	a.log.Info("forced refresh")
	a.wait(ctx, 0, a.order)
}

// RefreshOrigin 同步刷新单个池,来源不存在时返回 false
func (a *Aggregator) RefreshOrigin(ctx context.Context, origin model.Origin) bool {
	a.mu.RLock()
	_, ok := a.pools[origin]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	a.wait(ctx, 0, []model.Origin{origin})
	return true
}

// RefreshGroup 刷新轮换来源的指定分组,group < 0 时按当前小时选择。
// 抓取使用后台 context,调用方断开不会中断刷新。
func (a *Aggregator) RefreshGroup(ctx context.Context, group int) map[model.Origin]int {
	var rotators []Rotator
	a.mu.RLock()
	for _, origin := range a.order {
		if r, ok := a.pools[origin].adapter.(Rotator); ok {
			rotators = append(rotators, r)
		}
	}
	a.mu.RUnlock()

	var (
		mu      sync.Mutex
		fetched = make(map[model.Origin]int, len(rotators))
		g       errgroup.Group
	)
	for _, r := range rotators {
		r := r
		g.Go(func() error {
			grp := group
			if grp < 0 {
				grp = r.CurrentGroup()
			}
			origin := r.Origin()
			// 与普通刷新共用同一个 key,池正在刷新时加入而不是再发起一次
			select {
			case out := <-a.launch(origin, groupFetcher{Rotator: r, group: grp}):
				if res, ok := out.Val.(adapter.Result); ok {
					mu.Lock()
					fetched[origin] = len(res.Articles)
					mu.Unlock()
				}
			case <-ctx.Done():
			}
			return nil
		})
	}
	_ = g.Wait()

	a.log.Info("rotation group refreshed", "group", group, "pools", fetched)
	return fetched
}

// groupFetcher 把指定分组的抓取包装成普通适配器
type groupFetcher struct {
	Rotator
	group int
}

func (g groupFetcher) Fetch(ctx context.Context) adapter.Result {
	return g.FetchGroup(ctx, g.group)
}

// Status 各池状态,按固定顺序
func (a *Aggregator) Status() []PoolStatus {
	now := a.now()
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]PoolStatus, 0, len(a.order))
	for _, origin := range a.order {
		st := a.pools[origin]
		ps := PoolStatus{
			Origin:     origin,
			Articles:   len(st.articles),
			Refreshing: st.refreshing,
			LastError:  st.lastErr,
		}
		// 轮换来源限流时仍返回旧分组的结果,单看 ErrorKind 看不出来
		if r, ok := st.adapter.(Rotator); ok {
			ps.Rotating = true
			ps.RateLimited = r.RateLimited()
		}
		if st.lastKind != adapter.KindNone {
			ps.ErrorKind = st.lastKind.String()
		}
		if !st.lastFetch.IsZero() {
			t := st.lastFetch
			ps.LastFetch = &t
			ps.Stale = now.Sub(t) > a.staleAfter
		}
		out = append(out, ps)
	}
	return out
}

func (a *Aggregator) isRotating(st *poolState) bool {
	_, ok := st.adapter.(Rotator)
	return ok
}

// trigger 后台刷新;已在刷新中时什么也不做
func (a *Aggregator) trigger(origin model.Origin) {
	a.mu.RLock()
	busy := a.pools[origin].refreshing
	a.mu.RUnlock()
	if busy {
		return
	}
	a.start(origin)
}

// start 以后台 context 刷新池的默认适配器
func (a *Aggregator) start(origin model.Origin) <-chan singleflight.Result {
	a.mu.RLock()
	ad := a.pools[origin].adapter
	a.mu.RUnlock()
	return a.launch(origin, ad)
}

// launch 每个池只有一个 flight key,同一来源的并发刷新合并为一次
func (a *Aggregator) launch(origin model.Origin, ad adapter.Adapter) <-chan singleflight.Result {
	return a.flight.DoChan(string(origin), func() (any, error) {
		a.markRefreshing(origin)
		res := adapter.Run(a.bg, ad, a.fetchTimeout)
		a.store(origin, res)
		return res, nil
	})
}

// wait 发起刷新并等待;limit > 0 时最多等待 limit,刷新本身继续在后台完成
func (a *Aggregator) wait(ctx context.Context, limit time.Duration, origins []model.Origin) {
	chans := make([]<-chan singleflight.Result, 0, len(origins))
	for _, origin := range origins {
		chans = append(chans, a.start(origin))
	}

	var timeout <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		timeout = timer.C
	}

	for i, ch := range chans {
		select {
		case <-ch:
		case <-timeout:
			a.log.Warn("refresh wait timed out, serving partial pools", "waited", limit, "pending", origins[i:])
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *Aggregator) markRefreshing(origin model.Origin) {
	a.mu.Lock()
	a.pools[origin].refreshing = true
	a.mu.Unlock()
}

// store 失败时保留上一次的数据
func (a *Aggregator) store(origin model.Origin, res adapter.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.log.Debug("pool fetched", "origin", origin, "articles", len(res.Articles), "kind", res.Kind)

	st := a.pools[origin]
	st.refreshing = false
	st.lastFetch = a.now()
	st.lastKind = res.Kind
	st.lastErr = ""
	if res.Err != nil {
		st.lastErr = res.Err.Error()
	}
	if res.OK() || len(res.Articles) > 0 {
		st.articles = res.Articles
	}
}
