package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"ai-news/config"
	"ai-news/internal/cache"
	"ai-news/internal/logger"
	"ai-news/internal/service"
)

const jobTimeout = 2 * time.Minute

type Scheduler struct {
	cron   *cron.Cron
	agg    *service.Aggregator
	store  *cache.Store
	mem    *cache.Memory
	config config.CronConfig
	log    *slog.Logger

	fetchEntryID    cron.EntryID
	cleanupEntryID  cron.EntryID
	rotationEntryID cron.EntryID
}

func NewScheduler(agg *service.Aggregator, store *cache.Store, mem *cache.Memory, cfg config.CronConfig) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		agg:    agg,
		store:  store,
		mem:    mem,
		config: cfg,
		log:    logger.With("cron"),
	}
}

func (s *Scheduler) Start() error {
	var err error

	// 来源池刷新任务
	if s.fetchEntryID, err = s.cron.AddFunc(s.config.FetchInterval, s.fetch); err != nil {
		return fmt.Errorf("fetch schedule %q: %w", s.config.FetchInterval, err)
	}

	// 过期缓存清理任务
	if s.cleanupEntryID, err = s.cron.AddFunc(s.config.CleanupInterval, s.cleanup); err != nil {
		return fmt.Errorf("cleanup schedule %q: %w", s.config.CleanupInterval, err)
	}

	// 搜索类来源分组轮换
	if s.rotationEntryID, err = s.cron.AddFunc(s.config.RotationInterval, s.rotate); err != nil {
		return fmt.Errorf("rotation schedule %q: %w", s.config.RotationInterval, err)
	}

	s.cron.Start()
	s.log.Info("[Cron] Scheduler started",
		"fetch", s.config.FetchInterval,
		"cleanup", s.config.CleanupInterval,
		"rotation", s.config.RotationInterval,
	)
	return nil
}

func (s *Scheduler) fetch() {
	s.log.Info("[Cron] Refreshing source pools...")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.agg.Refresh(ctx)
}

func (s *Scheduler) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	evicted := s.mem.Cleanup()
	deleted, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.log.Warn("[Cron] Expired cache cleanup failed", "err", err)
		return
	}
	s.log.Info("[Cron] Expired cache cleaned", "memory", evicted, "persistent", deleted)
}

func (s *Scheduler) rotate() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	fetched := s.agg.RefreshGroup(ctx, -1)
	s.log.Info("[Cron] Rotation group refreshed", "pools", fetched)
}

// GetNextFetchTime 获取下次刷新时间
func (s *Scheduler) GetNextFetchTime() time.Time {
	return s.cron.Entry(s.fetchEntryID).Next
}

// GetNextCleanupTime 获取下次清理时间
func (s *Scheduler) GetNextCleanupTime() time.Time {
	return s.cron.Entry(s.cleanupEntryID).Next
}

// GetNextRotationTime 获取下次轮换时间
func (s *Scheduler) GetNextRotationTime() time.Time {
	return s.cron.Entry(s.rotationEntryID).Next
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
