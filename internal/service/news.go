package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ai-news/internal/cache"
	"ai-news/internal/logger"
	"ai-news/internal/model"
	"ai-news/internal/ranking"
	"ai-news/internal/sections"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBulkPageSize = 1000
)

// blockedQueryTerms 明显与 AI 无关的查询,直接返回空结果
var blockedQueryTerms = []string{
	"porn", "casino", "betting", "lottery", "horoscope", "astrology", "celebrity", "gossip",
	"recipe", "recipes", "football", "soccer", "nba", "nfl", "cricket", "fashion", "makeup",
	"shopping", "coupon", "black friday", "cyber monday", "movie", "movies", "music", "lyrics",
	"weather", "dating",
}

// NewsQuery 新闻接口的请求参数
type NewsQuery struct {
	Query     string
	Section   string
	Source    string
	Sources   []string
	Topics    []string
	Time      string
	Locations []string
	Product   string
	Platform  string
	Page      int
	Limit     int
	Bulk      bool
	Refresh   bool
}

// Normalize 把分页参数收敛到合法范围
func (q *NewsQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	limitCap := maxPageSize
	if q.Bulk {
		limitCap = maxBulkPageSize
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > limitCap {
		q.Limit = limitCap
	}
	q.Query = strings.TrimSpace(q.Query)
	if q.Section == "" {
		q.Section = ranking.SectionAll
	}
	q.Section = strings.ToUpper(q.Section)
}

func (q NewsQuery) cacheParams() map[string]string {
	return map[string]string{
		"q":        strings.ToLower(q.Query),
		"section":  q.Section,
		"source":   q.Source,
		"sources":  strings.Join(q.Sources, ","),
		"topics":   strings.Join(q.Topics, ","),
		"time":     q.Time,
		"location": strings.Join(q.Locations, ","),
		"product":  q.Product,
		"platform": q.Platform,
		"page":     strconv.Itoa(q.Page),
		"limit":    strconv.Itoa(q.Limit),
	}
}

func (q NewsQuery) options() ranking.Options {
	return ranking.Options{
		Query:     q.Query,
		Section:   q.Section,
		Source:    q.Source,
		Sources:   q.Sources,
		Topics:    q.Topics,
		Time:      q.Time,
		Locations: q.Locations,
		Product:   q.Product,
		Platform:  q.Platform,
	}
}

// BlockedTerm 返回命中的屏蔽词
func BlockedTerm(query string) string {
	padded := " " + strings.Join(strings.Fields(strings.ToLower(query)), " ") + " "
	for _, term := range blockedQueryTerms {
		if strings.Contains(padded, " "+term+" ") {
			return term
		}
	}
	return ""
}

type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

func paginate(total, page, limit int) Pagination {
	pages := (total + limit - 1) / limit
	return Pagination{
		Page:        page,
		Limit:       limit,
		TotalItems:  total,
		TotalPages:  pages,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}

type NewsFilters struct {
	AvailableSources []string `json:"availableSources"`
}

// NewsResponse 新闻接口返回值,articles 是 items 的别名
type NewsResponse struct {
	Items      []model.Article    `json:"items"`
	Articles   []model.Article    `json:"articles"`
	Total      int                `json:"total"`
	Pagination Pagination         `json:"pagination"`
	Filters    NewsFilters        `json:"filters"`
	IsMockData bool               `json:"_isMockData"`
	Sources    model.SourceCounts `json:"_sources"`
	Timestamp  time.Time          `json:"timestamp"`
	Message    string             `json:"message,omitempty"`
	Cache      string             `json:"_cache,omitempty"`
}

// StatsResponse stats=true 时的返回值
type StatsResponse struct {
	Sources         model.SourceCounts `json:"_sources"`
	SourceBreakdown map[string]int     `json:"sourceBreakdown"`
	Timestamp       time.Time          `json:"timestamp"`
}

// NewsService 新闻请求管线:缓存、来源池、过滤、分页
type NewsService struct {
	agg     *Aggregator
	proc    *ProcessorService
	cache   *cache.Layered
	version string
	now     func() time.Time
	log     *slog.Logger
}

func NewNewsService(agg *Aggregator, proc *ProcessorService, layered *cache.Layered, version string) *NewsService {
	return &NewsService{
		agg:     agg,
		proc:    proc,
		cache:   layered,
		version: version,
		now:     time.Now,
		log:     logger.With("news"),
	}
}

// Get 处理一次新闻请求。内部 panic 转为 error,由调用方返回示例数据
func (s *NewsService) Get(ctx context.Context, q NewsQuery) (resp *NewsResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("news pipeline panic", "panic", r)
			resp, err = nil, fmt.Errorf("news pipeline panic: %v", r)
		}
	}()

	q.Normalize()
	now := s.now()

	if term := BlockedTerm(q.Query); term != "" {
		s.log.Info("blocked query", "query", q.Query, "term", term)
		blocked := s.respond(model.NewsPayload{Items: []model.Article{}, Sources: model.SourceCounts{}}, q, now)
		blocked.Message = fmt.Sprintf("The search term %q is not related to AI or technology news.", term)
		return blocked, nil
	}

	key := cache.Key(q.cacheParams(), s.version)
	if q.Refresh {
		s.cache.Invalidate(ctx, key)
		s.agg.ForceRefresh(ctx)
	} else if hit, ok := s.cache.Get(ctx, key); ok {
		var payload model.NewsPayload
		switch decodeErr := json.Unmarshal(hit.Data, &payload); {
		case decodeErr != nil:
			s.log.Warn("cached payload unreadable", "key", key, "err", decodeErr)
		case cache.IsStaleEmpty(payload.Sources, s.agg.Counts()):
			s.log.Info("cached payload is a stale empty snapshot, recomputing", "key", key)
		default:
			cached := s.respond(payload, q, now)
			cached.Cache = string(hit.Tier)
			return cached, nil
		}
	}

	payload := s.compute(ctx, q, now)
	if !payload.IsMockData {
		if data, err := json.Marshal(payload); err == nil {
			s.cache.Set(ctx, key, data, payload.Sources, false)
		}
	}
	return s.respond(payload, q, now), nil
}

// prepared 合并来源池并富化,同时返回各池数量
func (s *NewsService) prepared(ctx context.Context) ([]model.Article, model.SourceCounts, bool) {
	pools := s.agg.Pools(ctx)
	counts := model.SourceCounts{}
	for _, origin := range s.agg.Origins() {
		counts[string(origin)] = len(pools[origin])
		counts["total"] += len(pools[origin])
	}

	merged := Merge(s.agg.Origins(), pools)
	if len(merged) == 0 {
		return nil, counts, false
	}
	return s.proc.Prepare(merged), counts, true
}

func (s *NewsService) compute(ctx context.Context, q NewsQuery, now time.Time) model.NewsPayload {
	prepared, counts, ok := s.prepared(ctx)
	if !ok {
		s.log.Warn("all source pools empty, serving mock data")
		return s.mockPayload(q, now)
	}

	selected := s.proc.Select(prepared, q.options(), now)
	return model.NewsPayload{
		Items:            pageOf(selected, q.Page, q.Limit),
		Total:            len(selected),
		AvailableSources: AvailableSources(prepared),
		Sources:          counts,
	}
}

func (s *NewsService) mockPayload(q NewsQuery, now time.Time) model.NewsPayload {
	selected := s.proc.Select(MockArticles(now), q.options(), now)
	return model.NewsPayload{
		Items:            pageOf(selected, q.Page, q.Limit),
		Total:            len(selected),
		AvailableSources: AvailableSources(selected),
		Sources:          model.SourceCounts{"total": 0},
		IsMockData:       true,
	}
}

// Fallback 出错时返回的示例数据
func (s *NewsService) Fallback(q NewsQuery) *NewsResponse {
	q.Normalize()
	now := s.now()
	return s.respond(s.mockPayload(q, now), q, now)
}

func (s *NewsService) respond(p model.NewsPayload, q NewsQuery, now time.Time) *NewsResponse {
	items := p.Items
	if items == nil {
		items = []model.Article{}
	}
	sources := p.AvailableSources
	if sources == nil {
		sources = []string{}
	}
	return &NewsResponse{
		Items:      items,
		Articles:   items,
		Total:      p.Total,
		Pagination: paginate(p.Total, q.Page, q.Limit),
		Filters:    NewsFilters{AvailableSources: sources},
		IsMockData: p.IsMockData,
		Sources:    p.Sources,
		Timestamp:  now,
	}
}

// Stats 只返回来源统计
func (s *NewsService) Stats(ctx context.Context) *StatsResponse {
	prepared, counts, _ := s.prepared(ctx)
	return &StatsResponse{
		Sources:         counts,
		SourceBreakdown: SourceBreakdown(prepared),
		Timestamp:       s.now(),
	}
}

// Sections 按请求条件过滤后组装栏目
func (s *NewsService) Sections(ctx context.Context, q NewsQuery) sections.Sections {
	q.Normalize()
	now := s.now()
	prepared, _, ok := s.prepared(ctx)
	if !ok {
		prepared = MockArticles(now)
	}
	selected := s.proc.Select(prepared, q.options(), now)
	return sections.Assemble(s.proc.Ranked(selected, now), now)
}

// Top 排名最高的 n 篇文章
func (s *NewsService) Top(ctx context.Context, n int) []model.Article {
	now := s.now()
	prepared, _, ok := s.prepared(ctx)
	if !ok {
		return nil
	}
	ranked := s.proc.Ranked(prepared, now)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func pageOf(articles []model.Article, page, limit int) []model.Article {
	start := (page - 1) * limit
	if start >= len(articles) {
		return []model.Article{}
	}
	end := start + limit
	if end > len(articles) {
		end = len(articles)
	}
	return articles[start:end]
}
