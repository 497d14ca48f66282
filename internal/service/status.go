package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"ai-news/internal/cache"
	"ai-news/internal/model"
)

type StatusService struct {
	db    *gorm.DB
	agg   *Aggregator
	cache *cache.Layered
}

type SystemStatus struct {
	// 来源池
	Pools    []PoolStatus `json:"pools"`
	Articles int          `json:"articles"`

	// 订阅源统计
	TotalFeeds   int64 `json:"total_feeds"`
	EnabledFeeds int64 `json:"enabled_feeds"`

	Cache cache.Stats `json:"cache"`

	// 定时任务信息
	NextFetchTime    time.Time `json:"next_fetch_time"`
	NextCleanupTime  time.Time `json:"next_cleanup_time"`
	NextRotationTime time.Time `json:"next_rotation_time"`
}

func NewStatusService(db *gorm.DB, agg *Aggregator, layered *cache.Layered) *StatusService {
	return &StatusService{db: db, agg: agg, cache: layered}
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	status := &SystemStatus{
		Pools: s.agg.Status(),
		Cache: s.cache.Stats(ctx),
	}
	for _, p := range status.Pools {
		status.Articles += p.Articles
	}

	// 统计订阅源
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.Feed{}).Count(&status.TotalFeeds).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Feed{}).Where("enabled = ?", true).Count(&status.EnabledFeeds).Error; err != nil {
		return nil, err
	}

	return status, nil
}
