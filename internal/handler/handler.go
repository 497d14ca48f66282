package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/feeds"

	"ai-news/config"
	"ai-news/internal/adapter"
	"ai-news/internal/cache"
	"ai-news/internal/logger"
	"ai-news/internal/model"
	"ai-news/internal/service"
)

const rssItemLimit = 50

// Deps 处理器依赖的服务
type Deps struct {
	News       *service.NewsService
	Aggregator *service.Aggregator
	Cache      *cache.Layered
	Feeds      *service.FeedService
	RSS        *adapter.RSSAdapter
	Stocks     *service.StocksService
	Status     *service.StatusService
	Inbox      *adapter.InstagramInbox
}

type Handler struct {
	cfg       *config.Config
	news      *service.NewsService
	agg       *service.Aggregator
	cache     *cache.Layered
	feed      *service.FeedService
	rss       *adapter.RSSAdapter
	stocks    *service.StocksService
	status    *service.StatusService
	inbox     *adapter.InstagramInbox
	log       *slog.Logger
	scheduler interface {
		GetNextFetchTime() time.Time
		GetNextCleanupTime() time.Time
		GetNextRotationTime() time.Time
	}
}

func NewHandler(cfg *config.Config, d Deps) *Handler {
	return &Handler{
		cfg:    cfg,
		news:   d.News,
		agg:    d.Aggregator,
		cache:  d.Cache,
		feed:   d.Feeds,
		rss:    d.RSS,
		stocks: d.Stocks,
		status: d.Status,
		inbox:  d.Inbox,
		log:    logger.With("http"),
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	GetNextFetchTime() time.Time
	GetNextCleanupTime() time.Time
	GetNextRotationTime() time.Time
}) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// News
		api.GET("/news", h.GetNews)
		api.GET("/news/sections", h.GetSections)
		api.GET("/news/rss", h.GetRSS)

		// Cache
		api.GET("/cache", h.GetCache)
		api.DELETE("/cache", h.ClearCache)

		// Cron
		api.GET("/cron/refresh", h.CronRefresh)
		api.POST("/cron/refresh", h.CronRefresh)

		// Webhooks
		api.POST("/webhooks/instagram", h.InstagramWebhook)

		// Stocks
		api.GET("/stocks", h.GetStocks)

		// Feeds
		api.GET("/feeds", h.ListFeeds)
		api.POST("/feeds", h.CreateFeed)
		api.PATCH("/feeds/:id", h.UpdateFeed)
		api.DELETE("/feeds/:id", h.DeleteFeed)
		api.POST("/feeds/:id/fetch", h.FetchFeed)

		// Status
		api.GET("/status", h.GetStatus)
	}
}

// ===== News相关 =====

func parseNewsQuery(c *gin.Context) service.NewsQuery {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return service.NewsQuery{
		Query:     firstQuery(c, "q", "query"),
		Section:   firstQuery(c, "section", "content", "contentType"),
		Source:    c.Query("source"),
		Sources:   splitCSV(c.Query("sources")),
		Topics:    splitCSV(c.Query("topics")),
		Time:      c.Query("time"),
		Locations: splitCSV(c.Query("location")),
		Product:   c.Query("product"),
		Platform:  c.Query("platform"),
		Page:      page,
		Limit:     limit,
		Bulk:      c.Query("bulk") == "true",
		Refresh:   c.Query("refresh") == "true",
	}
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (h *Handler) GetNews(c *gin.Context) {
	if c.Query("stats") == "true" {
		c.JSON(http.StatusOK, h.news.Stats(c.Request.Context()))
		return
	}

	q := parseNewsQuery(c)
	resp, err := h.news.Get(c.Request.Context(), q)
	if err != nil {
		// 内部错误时返回示例数据
		h.log.Error("news request failed, serving mock data", "err", err)
		c.JSON(http.StatusOK, h.news.Fallback(q))
		return
	}
	if resp.Cache != "" {
		c.Header("X-Cache", resp.Cache)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetSections(c *gin.Context) {
	c.JSON(http.StatusOK, h.news.Sections(c.Request.Context(), parseNewsQuery(c)))
}

func (h *Handler) GetRSS(c *gin.Context) {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	base := scheme + "://" + c.Request.Host

	feed := &feeds.Feed{
		Title:       "AI News",
		Link:        &feeds.Link{Href: base + "/api/news"},
		Description: "Product updates, model releases and research from AI companies",
		Created:     time.Now(),
	}
	for _, a := range h.news.Top(c.Request.Context(), rssItemLimit) {
		item := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: a.URL},
			Description: a.Description,
			Author:      &feeds.Author{Name: a.Source.Name},
			Id:          a.URL,
		}
		if a.PublishedAt != nil {
			item.Created = *a.PublishedAt
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

// ===== Cache相关 =====

func (h *Handler) GetCache(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats(c.Request.Context()))
}

// ClearCache pattern 为空时清空全部
func (h *Handler) ClearCache(c *gin.Context) {
	pattern := c.Query("pattern")
	mem, persisted, err := h.cache.InvalidateMatching(c.Request.Context(), pattern)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "memory": mem})
		return
	}
	h.log.Info("cache cleared", "pattern", pattern, "memory", mem, "persistent", persisted)
	c.JSON(http.StatusOK, gin.H{"memory": mem, "persistent": persisted})
}

// ===== Cron相关 =====

func (h *Handler) authorizedCron(c *gin.Context) bool {
	if !h.cfg.IsProduction() {
		return true
	}
	secret := h.cfg.Cron.Secret
	if secret == "" {
		return false
	}
	given := c.Query("secret")
	if given == "" {
		given = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

func (h *Handler) CronRefresh(c *gin.Context) {
	if !h.authorizedCron(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	group := -1
	if g := c.Query("group"); g != "" {
		n, err := strconv.Atoi(g)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "group must be a non-negative integer"})
			return
		}
		group = n
	}

	start := time.Now()
	ctx := c.Request.Context()
	h.agg.Refresh(ctx)
	rotated := h.agg.RefreshGroup(ctx, group)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"pools":    h.agg.Counts(),
		"rotated":  rotated,
		"duration": time.Since(start).String(),
	})
}

// ===== Webhook相关 =====

// InstagramWebhook 接收单条帖子或帖子数组
func (h *Handler) InstagramWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var posts []adapter.InstagramPost
	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "[") {
		err = binding.JSON.BindBody(body, &posts)
	} else {
		var post adapter.InstagramPost
		err = binding.JSON.BindBody(body, &post)
		posts = []adapter.InstagramPost{post}
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(posts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no posts"})
		return
	}

	accepted := h.inbox.Push(posts...)
	h.agg.RefreshOrigin(c.Request.Context(), model.OriginInstagram)
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted, "inbox": h.inbox.Len()})
}

// ===== Stocks相关 =====

func (h *Handler) GetStocks(c *gin.Context) {
	symbols := splitCSV(c.Query("symbols"))
	res, err := h.stocks.Quotes(c.Request.Context(), symbols)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, adapter.ErrRateLimited) || errors.Is(err, adapter.ErrDisabled) {
			status = http.StatusServiceUnavailable
		}
		if len(symbols) == 0 {
			symbols = h.stocks.Symbols()
		}
		c.JSON(status, gin.H{
			"error":     err.Error(),
			"symbols":   symbols,
			"quotes":    []service.Quote{},
			"stale":     true,
			"timestamp": time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

// ===== Feed相关 =====

func feedID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feed id"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) ListFeeds(c *gin.Context) {
	list, err := h.feed.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var input struct {
		Name    string `json:"name" binding:"required"`
		URL     string `json:"url" binding:"required,url"`
		Origin  string `json:"origin"`
		Enabled *bool  `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 未给出 enabled 时默认启用
	feed := model.Feed{
		Name:    input.Name,
		URL:     input.URL,
		Origin:  model.Origin(input.Origin),
		Enabled: input.Enabled == nil || *input.Enabled,
	}
	if err := h.feed.Create(c.Request.Context(), &feed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	id, ok := feedID(c)
	if !ok {
		return
	}
	var input struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.feed.SetEnabled(c.Request.Context(), id, *input.Enabled)
	switch {
	case errors.Is(err, service.ErrFeedNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "updated"})
	}
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	id, ok := feedID(c)
	if !ok {
		return
	}
	err := h.feed.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, service.ErrFeedNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	}
}

// FetchFeed 立即抓取单个订阅源,用于检查配置是否可用
func (h *Handler) FetchFeed(c *gin.Context) {
	id, ok := feedID(c)
	if !ok {
		return
	}
	feed, err := h.feed.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}

	articles, err := h.rss.FetchFeed(c.Request.Context(), *feed)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(articles), "articles": articles})
}

// ===== Status相关 =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 添加定时任务信息
	if h.scheduler != nil {
		status.NextFetchTime = h.scheduler.GetNextFetchTime()
		status.NextCleanupTime = h.scheduler.GetNextCleanupTime()
		status.NextRotationTime = h.scheduler.GetNextRotationTime()
	}

	c.JSON(http.StatusOK, status)
}
