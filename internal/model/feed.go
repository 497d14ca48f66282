package model

import "time"

// Feed 已配置的 RSS/Atom 订阅源
type Feed struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	URL       string    `gorm:"size:500;uniqueIndex;not null" json:"url" binding:"required,url"`
	Origin    Origin    `gorm:"size:32;default:rss;index" json:"origin"`
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrustTier 来源可信度
type TrustTier string

const (
	TrustHigh   TrustTier = "HIGH"
	TrustMedium TrustTier = "MEDIUM"
	TrustLow    TrustTier = "LOW"
)

// SourceInfo 来源注册表条目
type SourceInfo struct {
	Company    string
	Trust      TrustTier
	SourceType SourceType
}
