package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ai-news/config"
	"ai-news/internal/adapter"
	"ai-news/internal/cache"
	"ai-news/internal/enrich"
	"ai-news/internal/model"
	"ai-news/internal/ranking"
	"ai-news/internal/sections"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAdapter struct {
	origin model.Origin
	calls  atomic.Int32

	mu       sync.Mutex
	articles []model.Article
	err      error
	gate     chan struct{}
}

func newFakeAdapter(origin model.Origin, articles ...model.Article) *fakeAdapter {
	return &fakeAdapter{origin: origin, articles: articles}
}

func (f *fakeAdapter) Origin() model.Origin { return f.origin }

func (f *fakeAdapter) Fetch(ctx context.Context) adapter.Result {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return adapter.Result{Origin: f.origin, Kind: adapter.KindTimeout, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return adapter.Result{Origin: f.origin, Kind: adapter.KindNetwork, Err: f.err}
	}
	return adapter.Result{Origin: f.origin, Articles: append([]model.Article(nil), f.articles...)}
}

func (f *fakeAdapter) set(articles []model.Article, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles, f.err = articles, err
}

func (f *fakeAdapter) block() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeAdapter) unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

type spyStore struct {
	*cache.Store
	finds, saves, deletes atomic.Int32
}

func (s *spyStore) FindValid(ctx context.Context, key string) (*model.CacheEntry, error) {
	s.finds.Add(1)
	return s.Store.FindValid(ctx, key)
}

func (s *spyStore) Save(ctx context.Context, key string, data []byte, sources model.SourceCounts, isMock bool, ttl time.Duration) error {
	s.saves.Add(1)
	return s.Store.Save(ctx, key, data, sources, isMock, ttl)
}

func (s *spyStore) Delete(ctx context.Context, key string) error {
	s.deletes.Add(1)
	return s.Store.Delete(ctx, key)
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Feed{}, &model.CacheEntry{}))
	return db
}

func testCacheConfig() config.CacheConfig {
	cfg := config.Default().Cache
	cfg.ColdStartWait = 2 * time.Second
	cfg.FetchTimeout = 2 * time.Second
	return cfg
}

func aiArticles() []model.Article {
	at := func(h int) *time.Time {
		t := testNow.Add(-time.Duration(h) * time.Hour)
		return &t
	}
	src := model.Source{Name: "Example Wire"}
	return []model.Article{
		{Title: "OpenAI launches GPT-5 for developers", URL: "https://news.example.com/1", PublishedAt: at(1), Source: src, Origin: model.OriginRSS},
		{Title: "Anthropic releases Claude model for enterprise", URL: "https://news.example.com/2", PublishedAt: at(2), Source: src, Origin: model.OriginRSS},
		{Title: "Google Gemini adds multimodal agents for developers", URL: "https://news.example.com/3", PublishedAt: at(3), Source: src, Origin: model.OriginRSS},
		{Title: "Meta open-sources Llama large language model for research", URL: "https://news.example.com/4", PublishedAt: at(4), Source: src, Origin: model.OriginRSS},
		{Title: "NVIDIA unveils generative AI platform for startups", URL: "https://news.example.com/5", PublishedAt: at(5), Source: src, Origin: model.OriginRSS},
	}
}

type fixture struct {
	rss   *fakeAdapter
	agg   *Aggregator
	store *spyStore
	mem   *cache.Memory
	news  *NewsService
}

func newFixture(t *testing.T, adapters ...adapter.Adapter) *fixture {
	t.Helper()
	rss := newFakeAdapter(model.OriginRSS, aiArticles()...)
	agg := NewAggregator(testCacheConfig(), append([]adapter.Adapter{rss}, adapters...)...)
	agg.now = func() time.Time { return testNow }
	t.Cleanup(agg.Stop)

	store := &spyStore{Store: cache.NewStore(testDB(t), 2*time.Second)}
	mem := cache.NewMemory(5 * time.Minute)
	layered := cache.NewLayered(mem, store, 30*time.Minute)

	proc := NewProcessorService(enrich.New(nil), ranking.DefaultWeights())
	news := NewNewsService(agg, proc, layered, "v7")
	news.now = func() time.Time { return testNow }

	return &fixture{rss: rss, agg: agg, store: store, mem: mem, news: news}
}

func (f *fixture) seed(t *testing.T, q NewsQuery, payload model.NewsPayload) {
	t.Helper()
	q.Normalize()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	f.news.cache.Set(context.Background(), cache.Key(q.cacheParams(), "v7"), data, payload.Sources, false)
}

func seededPayload(rssCount int) model.NewsPayload {
	return model.NewsPayload{
		Items:   []model.Article{{Title: "Seeded", URL: "https://seed.example.com/1"}},
		Total:   1,
		Sources: model.SourceCounts{"rss": rssCount, "total": rssCount},
	}
}

func TestColdStartServesFirstFill(t *testing.T) {
	f := newFixture(t)

	resp, err := f.news.Get(context.Background(), NewsQuery{})
	require.NoError(t, err)

	assert.False(t, resp.IsMockData)
	assert.Equal(t, 5, resp.Total)
	assert.Len(t, resp.Items, 5)
	assert.Equal(t, resp.Items, resp.Articles)
	assert.Equal(t, "OpenAI launches GPT-5 for developers", resp.Items[0].Title)
	assert.Equal(t, 5, resp.Sources["rss"])
	assert.Equal(t, int32(1), f.rss.calls.Load())
	assert.Equal(t, int32(1), f.store.saves.Load(), "result written back")

	// second request is served from memory
	resp, err = f.news.Get(context.Background(), NewsQuery{})
	require.NoError(t, err)
	assert.Equal(t, string(cache.TierMemory), resp.Cache)
	assert.Equal(t, int32(1), f.rss.calls.Load())
}

func TestColdStartWaitIsBounded(t *testing.T) {
	f := newFixture(t)
	f.agg.coldStartWait = 50 * time.Millisecond
	f.rss.block()

	start := time.Now()
	resp, err := f.news.Get(context.Background(), NewsQuery{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, resp.IsMockData, "nothing fetched yet")
	assert.Equal(t, int32(0), f.store.saves.Load(), "mock data is never cached")

	// the fill keeps running in the background
	f.rss.unblock()
	assert.Eventually(t, func() bool { return f.agg.Counts()[model.OriginRSS] == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestForcedRefreshBypassesCache(t *testing.T) {
	f := newFixture(t)
	f.seed(t, NewsQuery{}, seededPayload(1))

	resp, err := f.news.Get(context.Background(), NewsQuery{Refresh: true})
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.store.deletes.Load(), "persistent tier invalidated")
	assert.Equal(t, int32(0), f.store.finds.Load(), "cache is not read")
	assert.Equal(t, 5, resp.Total)
	assert.NotEqual(t, "Seeded", resp.Items[0].Title)
	assert.Equal(t, int32(1), f.rss.calls.Load())
}

func TestStaleEmptyCacheIsBypassed(t *testing.T) {
	f := newFixture(t)
	f.agg.ForceRefresh(context.Background())
	f.seed(t, NewsQuery{}, seededPayload(0))
	saves := f.store.saves.Load()

	resp, err := f.news.Get(context.Background(), NewsQuery{})
	require.NoError(t, err)

	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, saves+1, f.store.saves.Load(), "recomputed and written back")
}

func TestNonEmptyCacheIsServed(t *testing.T) {
	f := newFixture(t)
	f.agg.ForceRefresh(context.Background())
	f.seed(t, NewsQuery{}, seededPayload(5))
	saves := f.store.saves.Load()

	resp, err := f.news.Get(context.Background(), NewsQuery{})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Seeded", resp.Items[0].Title)
	assert.Equal(t, saves, f.store.saves.Load())
}

func TestBlockedQueryShortCircuits(t *testing.T) {
	f := newFixture(t)

	resp, err := f.news.Get(context.Background(), NewsQuery{Query: "Best Black Friday laptops"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Message)
	assert.Empty(t, resp.Items)
	assert.Equal(t, int32(0), f.store.finds.Load())
	assert.Equal(t, int32(0), f.rss.calls.Load())
}

func TestQueryFilterAndPagination(t *testing.T) {
	f := newFixture(t)

	resp, err := f.news.Get(context.Background(), NewsQuery{Query: "developers", Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Google Gemini adds multimodal agents for developers", resp.Items[0].Title)
	assert.Equal(t, Pagination{Page: 2, Limit: 1, TotalItems: 2, TotalPages: 2, HasNextPage: false, HasPrevPage: true}, resp.Pagination)

	resp, err = f.news.Get(context.Background(), NewsQuery{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 5, resp.Total)
}

func TestNormalizeClampsPagination(t *testing.T) {
	q := NewsQuery{Page: -3, Limit: 5000}
	q.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 100, q.Limit)

	q = NewsQuery{Limit: 5000, Bulk: true}
	q.Normalize()
	assert.Equal(t, 1000, q.Limit)

	q = NewsQuery{}
	q.Normalize()
	assert.Equal(t, 20, q.Limit)
	assert.Equal(t, ranking.SectionAll, q.Section)
}

func TestStatsAndSections(t *testing.T) {
	f := newFixture(t)

	stats := f.news.Stats(context.Background())
	assert.Equal(t, 5, stats.Sources["total"])
	assert.Equal(t, 5, stats.SourceBreakdown["Example Wire"])

	s := f.news.Sections(context.Background(), NewsQuery{})
	assert.Len(t, s.Top, 5)
	assert.NotEmpty(t, s.ByProduct["ChatGPT"])
	assert.Len(t, f.news.Top(context.Background(), 2), 2)
}

func TestStaleWhileRevalidate(t *testing.T) {
	rss := newFakeAdapter(model.OriginRSS, aiArticles()[:1]...)
	clock := testNow
	var clockMu sync.Mutex
	agg := NewAggregator(testCacheConfig(), rss)
	agg.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	defer agg.Stop()

	agg.ForceRefresh(context.Background())
	require.Equal(t, 1, agg.Counts()[model.OriginRSS])

	clockMu.Lock()
	clock = clock.Add(16 * time.Minute)
	clockMu.Unlock()

	rss.set(aiArticles(), nil)
	rss.block()

	start := time.Now()
	pools := agg.Pools(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond, "stale read does not block")
	assert.Len(t, pools[model.OriginRSS], 1, "last known data served")

	assert.Eventually(t, func() bool { return rss.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.True(t, agg.Status()[0].Refreshing)
	agg.Pools(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), rss.calls.Load(), "second trigger while refreshing is a no-op")

	rss.unblock()
	assert.Eventually(t, func() bool { return agg.Counts()[model.OriginRSS] == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestFailedRefreshKeepsPreviousArticles(t *testing.T) {
	rss := newFakeAdapter(model.OriginRSS, aiArticles()...)
	gdelt := newFakeAdapter(model.OriginGDELT)
	gdelt.set(nil, errors.New("connection refused"))

	agg := NewAggregator(testCacheConfig(), rss, gdelt)
	defer agg.Stop()

	agg.ForceRefresh(context.Background())
	assert.Equal(t, 5, agg.Counts()[model.OriginRSS], "one failing pool does not block others")

	rss.set(nil, errors.New("boom"))
	agg.ForceRefresh(context.Background())
	assert.Equal(t, 5, agg.Counts()[model.OriginRSS])

	status := agg.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "boom", status[0].LastError)
	assert.Equal(t, adapter.KindNetwork.String(), status[1].ErrorKind)
}

type fakeSearcher struct {
	origin model.Origin
	mu     sync.Mutex
	seen   []string
}

func (s *fakeSearcher) Origin() model.Origin { return s.origin }

func (s *fakeSearcher) Search(ctx context.Context, query string) adapter.Result {
	s.mu.Lock()
	s.seen = append(s.seen, query)
	s.mu.Unlock()
	return adapter.Result{Origin: s.origin, Articles: []model.Article{{Title: query, URL: "https://search.example.com/" + query}}}
}

func TestRefreshGroup(t *testing.T) {
	searcher := &fakeSearcher{origin: model.OriginTavily}
	rot := adapter.NewRotating(searcher, [][]string{{"a", "b"}, {"c"}})
	rss := newFakeAdapter(model.OriginRSS, aiArticles()...)

	agg := NewAggregator(testCacheConfig(), rss, rot)
	defer agg.Stop()

	fetched := agg.RefreshGroup(context.Background(), 1)
	assert.Equal(t, map[model.Origin]int{model.OriginTavily: 1}, fetched)
	assert.Equal(t, []string{"c"}, searcher.seen)
	assert.Equal(t, int32(0), rss.calls.Load(), "only rotating pools refresh")

	fetched = agg.RefreshGroup(context.Background(), 0)
	assert.Equal(t, 3, fetched[model.OriginTavily], "union of all groups")

	// regular refresh leaves populated rotating pools alone
	agg.Refresh(context.Background())
	assert.Len(t, searcher.seen, 3)
	assert.Equal(t, int32(1), rss.calls.Load())
}

type gatedSearcher struct {
	origin model.Origin
	calls  atomic.Int32
	gate   chan struct{}
	kind   adapter.ErrorKind
}

func (s *gatedSearcher) Origin() model.Origin { return s.origin }

func (s *gatedSearcher) Search(ctx context.Context, query string) adapter.Result {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.kind == adapter.KindRateLimited {
		return adapter.Result{Origin: s.origin, Kind: s.kind, Err: adapter.ErrRateLimited}
	}
	return adapter.Result{Origin: s.origin, Articles: []model.Article{{Title: query, URL: "https://search.example.com/" + query}}}
}

func TestRefreshGroupJoinsInflightRefresh(t *testing.T) {
	searcher := &gatedSearcher{origin: model.OriginGNews, gate: make(chan struct{})}
	rot := adapter.NewRotating(searcher, [][]string{{"a"}, {"b"}})

	agg := NewAggregator(testCacheConfig(), rot)
	defer agg.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		agg.ForceRefresh(context.Background())
	}()
	require.Eventually(t, func() bool { return searcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	var fetched map[model.Origin]int
	go func() {
		defer wg.Done()
		fetched = agg.RefreshGroup(context.Background(), 1)
	}()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), searcher.calls.Load(), "group refresh joins the running refresh")

	close(searcher.gate)
	wg.Wait()

	assert.Equal(t, int32(1), searcher.calls.Load())
	assert.Equal(t, 1, fetched[model.OriginGNews])
	assert.False(t, agg.Status()[0].Refreshing)
}

func TestStatusReportsRateLimitedRotation(t *testing.T) {
	searcher := &gatedSearcher{origin: model.OriginTavily}
	rot := adapter.NewRotating(searcher, [][]string{{"a"}, {"b"}})

	agg := NewAggregator(testCacheConfig(), rot)
	defer agg.Stop()

	agg.RefreshGroup(context.Background(), 0)
	status := agg.Status()
	require.Len(t, status, 1)
	assert.True(t, status[0].Rotating)
	assert.False(t, status[0].RateLimited)

	searcher.kind = adapter.KindRateLimited
	fetched := agg.RefreshGroup(context.Background(), 1)
	assert.Equal(t, 1, fetched[model.OriginTavily], "earlier group results are still served")

	status = agg.Status()
	assert.True(t, status[0].RateLimited)
	assert.Equal(t, 1, status[0].Articles)
}

func TestPrepareKeepsIgnoreClassifiedArticles(t *testing.T) {
	proc := NewProcessorService(enrich.New(nil), ranking.DefaultWeights())
	in := []model.Article{{
		Title:       "OpenAI launches GPT-5 for developers, CEO says in interview",
		URL:         "https://openai.com/index/gpt-5-developers",
		Source:      model.Source{Name: "OpenAI"},
		Origin:      model.OriginRSS,
		PublishedAt: &testNow,
	}}

	prepared := proc.Prepare(in)
	require.Len(t, prepared, 1)
	assert.Equal(t, model.UpdateIgnore, prepared[0].UpdateType)

	sec := sections.Assemble(prepared, testNow)
	assert.Len(t, sec.Top, 1)
	assert.Empty(t, sec.ProductUpdates, "ignored updates stay out of release sections")
	assert.Empty(t, sec.ModelReleases)
}

func TestMergeDedupesAcrossPools(t *testing.T) {
	pools := map[model.Origin][]model.Article{
		model.OriginRSS:        {{Title: "rss", URL: "https://x.example.com/a/"}},
		model.OriginHackerNews: {{Title: "hn", URL: "https://x.example.com/a"}, {Title: "hn2", URL: "https://x.example.com/b"}},
	}
	out := Merge([]model.Origin{model.OriginRSS, model.OriginHackerNews}, pools)
	require.Len(t, out, 2)
	assert.Equal(t, "rss", out[0].Title)
}
