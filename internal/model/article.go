package model

import (
	"strings"
	"time"
)

// Origin 标记文章来自哪个适配器
type Origin string

const (
	OriginRSS        Origin = "rss"
	OriginArxiv      Origin = "arxiv"
	OriginGDELT      Origin = "gdelt"
	OriginHackerNews Origin = "hackernews"
	OriginInstagram  Origin = "instagram"
	OriginGNews      Origin = "gnews"
	OriginTavily     Origin = "tavily"
	OriginPerplexity Origin = "perplexity"
	OriginScraper    Origin = "scraper"
)

// UpdateType 文章性质分类
type UpdateType string

const (
	UpdateProduct  UpdateType = "PRODUCT_UPDATE"
	UpdateModel    UpdateType = "MODEL_RELEASE"
	UpdateAPI      UpdateType = "API_UPDATE"
	UpdateResearch UpdateType = "RESEARCH"
	UpdateNews     UpdateType = "NEWS"
	UpdateIgnore   UpdateType = "IGNORE"
)

// SourceType 来源类型,用于按可信度过滤
type SourceType string

const (
	SourceOfficialBlog SourceType = "OFFICIAL_BLOG"
	SourceResearchLab  SourceType = "RESEARCH_LAB"
	SourceChangelog    SourceType = "CHANGELOG"
	SourceTechNews     SourceType = "TECH_NEWS"
	SourceAggregator   SourceType = "AGGREGATOR"
)

type Source struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type Article struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	ImageURL    string     `json:"image,omitempty"`
	PublishedAt *time.Time `json:"publishedAt"`
	Source      Source     `json:"source"`
	Origin      Origin     `json:"origin"`
	Location    string     `json:"location,omitempty"`
	Topics      []string   `json:"topics,omitempty"`

	// 以下字段由 enrich 阶段填充
	UpdateType UpdateType `json:"updateType,omitempty"`
	Entities   []string   `json:"entities,omitempty"`
	SourceType SourceType `json:"sourceType,omitempty"`
	Trust      TrustTier  `json:"trust,omitempty"`
}

// NormalizeURL 去掉末尾斜杠,作为去重键
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// Key 返回文章的去重键
func (a *Article) Key() string {
	return NormalizeURL(a.URL)
}

// Text 标题与摘要拼接,供关键词匹配使用
func (a *Article) Text() string {
	return a.Title + " " + a.Description
}

// HasEntity 判断是否检测到指定产品
func (a *Article) HasEntity(name string) bool {
	for _, e := range a.Entities {
		if strings.EqualFold(e, name) {
			return true
		}
	}
	return false
}
