package model

import "time"

// CacheEntry 持久化缓存行
type CacheEntry struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	CacheKey   string    `gorm:"size:512;uniqueIndex;not null" json:"cacheKey"`
	Data       string    `gorm:"type:text" json:"data"`
	Sources    string    `gorm:"type:text" json:"sources"`
	IsMockData bool      `gorm:"default:false" json:"isMockData"`
	Timestamp  time.Time `json:"timestamp"`
	ExpiresAt  time.Time `gorm:"index;not null" json:"expiresAt"`
}

// Valid 当且仅当 now < ExpiresAt
func (e *CacheEntry) Valid(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// SourceCounts 各来源池的文章数量,键为 Origin,另含 "total"
type SourceCounts map[string]int

// NewsPayload 新闻接口缓存的结果
type NewsPayload struct {
	Items            []Article    `json:"items"`
	Total            int          `json:"total"`
	AvailableSources []string     `json:"availableSources"`
	Sources          SourceCounts `json:"_sources"`
	IsMockData       bool         `json:"_isMockData"`
}
