package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ai-news/internal/deadline"
	"ai-news/internal/logger"
	"ai-news/internal/model"
)

// ErrMiss 缓存中没有可用数据
var ErrMiss = errors.New("cache miss")

const sampleKeyLimit = 10

// Store 基于数据库的持久化缓存层
type Store struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

func NewStore(db *gorm.DB, opTimeout time.Duration) *Store {
	return &Store{
		db:      db,
		timeout: opTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.With("cache"),
	}
}

// StoreStats 持久化缓存统计
type StoreStats struct {
	Total      int64    `json:"total"`
	Valid      int64    `json:"valid"`
	Expired    int64    `json:"expired"`
	SampleKeys []string `json:"sampleKeys"`
}

// FindValid 查询未过期的缓存行。不依赖后台清理,读取时再校验 expires_at,
// 看到的过期行直接删除。
func (s *Store) FindValid(ctx context.Context, key string) (*model.CacheEntry, error) {
	return deadline.Run(ctx, s.timeout, func(ctx context.Context) (*model.CacheEntry, error) {
		now := s.now()
		var entry model.CacheEntry
		err := s.db.WithContext(ctx).
			Where("cache_key = ?", key).
			Limit(1).
			Find(&entry).Error
		if err != nil {
			return nil, fmt.Errorf("find cache %s: %w", key, err)
		}
		if entry.ID == 0 {
			return nil, ErrMiss
		}
		if !entry.Valid(now) {
			if err := s.db.WithContext(ctx).Delete(&model.CacheEntry{}, entry.ID).Error; err != nil {
				s.log.Warn("delete expired cache row failed", "key", key, "err", err)
			}
			return nil, ErrMiss
		}
		return &entry, nil
	})
}

// Save 按 cache_key 插入或覆盖
func (s *Store) Save(ctx context.Context, key string, data []byte, sources model.SourceCounts, isMock bool, ttl time.Duration) error {
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	now := s.now()
	entry := model.CacheEntry{
		CacheKey:   key,
		Data:       string(data),
		Sources:    string(sourcesJSON),
		IsMockData: isMock,
		Timestamp:  now,
		ExpiresAt:  now.Add(ttl),
	}

	return deadline.Do(ctx, s.timeout, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "sources", "is_mock_data", "timestamp", "expires_at"}),
		}).Create(&entry).Error
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&model.CacheEntry{}).Error
	})
}

// DeleteMatching 删除 key 中包含 pattern 的行,pattern 为空时全部删除
func (s *Store) DeleteMatching(ctx context.Context, pattern string) (int64, error) {
	if pattern == "" {
		return s.DeleteAll(ctx)
	}
	return deadline.Run(ctx, s.timeout, func(ctx context.Context) (int64, error) {
		res := s.db.WithContext(ctx).
			Where(`cache_key LIKE ? ESCAPE '\'`, "%"+escapeLike(pattern)+"%").
			Delete(&model.CacheEntry{})
		return res.RowsAffected, res.Error
	})
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	return deadline.Run(ctx, s.timeout, func(ctx context.Context) (int64, error) {
		res := s.db.WithContext(ctx).Where("1 = 1").Delete(&model.CacheEntry{})
		return res.RowsAffected, res.Error
	})
}

// DeleteExpired 定时清理过期行
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	return deadline.Run(ctx, s.timeout, func(ctx context.Context) (int64, error) {
		res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&model.CacheEntry{})
		return res.RowsAffected, res.Error
	})
}

func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	return deadline.Run(ctx, s.timeout, func(ctx context.Context) (StoreStats, error) {
		var st StoreStats
		db := s.db.WithContext(ctx).Model(&model.CacheEntry{})
		if err := db.Count(&st.Total).Error; err != nil {
			return st, err
		}
		if err := s.db.WithContext(ctx).Model(&model.CacheEntry{}).
			Where("expires_at > ?", s.now()).Count(&st.Valid).Error; err != nil {
			return st, err
		}
		st.Expired = st.Total - st.Valid
		err := s.db.WithContext(ctx).Model(&model.CacheEntry{}).
			Order("timestamp DESC").Limit(sampleKeyLimit).
			Pluck("cache_key", &st.SampleKeys).Error
		return st, err
	})
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
