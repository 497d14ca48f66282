package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ai-news/config"
	"ai-news/internal/adapter"
	"ai-news/internal/cache"
	"ai-news/internal/enrich"
	"ai-news/internal/handler"
	"ai-news/internal/logger"
	"ai-news/internal/model"
	"ai-news/internal/ranking"
	"ai-news/internal/scheduler"
	"ai-news/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatal("Failed to init logger:", err)
	}
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatal("Failed to create data dir:", err)
	}
	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect database:", err)
	}

	// 自动迁移
	if err := db.AutoMigrate(&model.Feed{}, &model.CacheEntry{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// 写入默认订阅源
	feedSvc := service.NewFeedService(db)
	if n, err := feedSvc.Seed(context.Background(), cfg.Sources.Feeds); err != nil {
		logger.Warn("seeding feeds failed", "err", err)
	} else if n > 0 {
		logger.Info("default feeds seeded", "count", n)
	}

	// 初始化来源适配器
	client := adapter.NewClient(cfg.Cache.FetchTimeout, cfg.Sources.UserAgent)
	rss := adapter.NewRSSAdapter(db, model.OriginRSS, client, cfg.Cache.FetchTimeout)
	inbox := adapter.NewInstagramInbox(0)

	pages := make([]adapter.ListingPage, 0, len(cfg.Sources.Scrapers))
	for _, s := range cfg.Sources.Scrapers {
		pages = append(pages, adapter.ListingPage{Name: s.Name, URL: s.URL, MaxLinks: s.MaxLinks})
	}

	groups := cfg.Sources.SearchGroups
	agg := service.NewAggregator(cfg.Cache,
		rss,
		adapter.NewRSSAdapter(db, model.OriginArxiv, client, cfg.Cache.FetchTimeout),
		adapter.NewGDELTAdapter(client),
		adapter.NewHackerNewsAdapter(client),
		inbox,
		adapter.NewRotating(adapter.NewGNewsAdapter(client, cfg.Sources.GNewsAPIKey), groups),
		adapter.NewRotating(adapter.NewTavilyAdapter(client, cfg.Sources.TavilyAPIKey), groups),
		adapter.NewRotating(adapter.NewPerplexityAdapter(client, cfg.Sources.PerplexityAPIKey, cfg.Sources.PerplexityModel), groups),
		adapter.NewScraperAdapter(pages, cfg.Sources.UserAgent, cfg.Cache.FetchTimeout),
	)
	agg.Start()
	defer agg.Stop()

	// 初始化服务
	weights := ranking.DefaultWeights()
	weights.MinRelevance = cfg.Ranking.MinRelevance
	weights.MinAIFocus = cfg.Ranking.MinAIFocus
	processorSvc := service.NewProcessorService(enrich.New(nil), weights)

	mem := cache.NewMemory(cfg.Cache.MemoryTTL)
	store := cache.NewStore(db, cfg.Cache.OpTimeout)
	layered := cache.NewLayered(mem, store, cfg.Cache.PersistentTTL)

	// 启动定时任务
	sched := scheduler.NewScheduler(agg, store, mem, cfg.Cron)
	if err := sched.Start(); err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}
	defer sched.Stop()

	// 初始化Gin
	r := gin.Default()

	// 注册路由
	h := handler.NewHandler(cfg, handler.Deps{
		News:       service.NewNewsService(agg, processorSvc, layered, cfg.Cache.Version),
		Aggregator: agg,
		Cache:      layered,
		Feeds:      feedSvc,
		RSS:        rss,
		Stocks:     service.NewStocksService(client, cfg.Stocks, cfg.Cache.Duration),
		Status:     service.NewStatusService(db, agg, layered),
		Inbox:      inbox,
	})
	h.SetScheduler(sched)
	h.RegisterRoutes(r)

	// 启动服务
	srv := &http.Server{Addr: cfg.GetServerAddress(), Handler: r}
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed:", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
}
