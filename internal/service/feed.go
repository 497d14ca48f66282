package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ai-news/config"
	"ai-news/internal/model"
)

// ErrFeedNotFound 订阅源不存在
var ErrFeedNotFound = errors.New("feed not found")

// FeedService 管理 RSS/Atom 订阅源表
type FeedService struct {
	db *gorm.DB
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{db: db}
}

// Seed 写入配置中的订阅源,已存在的 URL 保持不变
func (s *FeedService) Seed(ctx context.Context, sources []config.FeedSource) (int, error) {
	var created int
	for _, src := range sources {
		feed := model.Feed{
			Name:    src.Name,
			URL:     src.URL,
			Origin:  originOf(src.Origin),
			Enabled: true,
		}
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&feed)
		if res.Error != nil {
			return created, fmt.Errorf("seed feed %s: %w", src.URL, res.Error)
		}
		created += int(res.RowsAffected)
	}
	return created, nil
}

// List 列出订阅源
func (s *FeedService) List(ctx context.Context) ([]model.Feed, error) {
	var feeds []model.Feed
	err := s.db.WithContext(ctx).Order("id").Find(&feeds).Error
	return feeds, err
}

func (s *FeedService) Get(ctx context.Context, id uint) (*model.Feed, error) {
	var feed model.Feed
	err := s.db.WithContext(ctx).First(&feed, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFeedNotFound
	}
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// Create 新增订阅源,Enabled 按调用方给出的值保存
func (s *FeedService) Create(ctx context.Context, feed *model.Feed) error {
	feed.ID = 0
	feed.Origin = originOf(string(feed.Origin))
	enabled := feed.Enabled
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(feed).Error; err != nil {
			return err
		}
		// enabled 列有默认值 true,插入时 false 会被当作零值跳过
		if !enabled {
			return tx.Model(feed).Update("enabled", false).Error
		}
		return nil
	})
}

// SetEnabled 启用或停用
func (s *FeedService) SetEnabled(ctx context.Context, id uint, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&model.Feed{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFeedNotFound
	}
	return nil
}

// Delete 删除订阅源
func (s *FeedService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Feed{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFeedNotFound
	}
	return nil
}

// originOf 订阅源只能属于 rss 或 arxiv 池
func originOf(s string) model.Origin {
	if model.Origin(s) == model.OriginArxiv {
		return model.OriginArxiv
	}
	return model.OriginRSS
}
