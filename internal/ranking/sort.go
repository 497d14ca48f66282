package ranking

import (
	"sort"
	"time"

	"ai-news/internal/model"
)

// Dedupe 按规范化 URL 去重,保留第一次出现的文章
func Dedupe(articles []model.Article) []model.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		key := a.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

func validTime(a *model.Article, now time.Time) bool {
	return a.PublishedAt != nil && !a.PublishedAt.After(now)
}

// SortByPublished 新的在前;缺失或未来时间的文章保持原顺序排在最后
func SortByPublished(articles []model.Article, now time.Time) []model.Article {
	out := append([]model.Article(nil), articles...)
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := validTime(&out[i], now), validTime(&out[j], now)
		if vi != vj {
			return vi
		}
		if !vi {
			return false
		}
		return out[i].PublishedAt.After(*out[j].PublishedAt)
	})
	return out
}

// RankWeights 排序权重
type RankWeights struct {
	Trust      map[model.TrustTier]int
	UpdateType map[model.UpdateType]int
	Within6h   int
	Within24h  int
	Within72h  int
}

func DefaultRankWeights() RankWeights {
	return RankWeights{
		Trust: map[model.TrustTier]int{
			model.TrustHigh:   30,
			model.TrustMedium: 20,
			model.TrustLow:    10,
		},
		UpdateType: map[model.UpdateType]int{
			model.UpdateProduct:  40,
			model.UpdateModel:    30,
			model.UpdateAPI:      20,
			model.UpdateResearch: 10,
		},
		Within6h:  30,
		Within24h: 20,
		Within72h: 10,
	}
}

// RankScore 可信度 + 更新类型 + 时效
func (rw RankWeights) RankScore(a *model.Article, now time.Time) int {
	score := rw.Trust[a.Trust] + rw.UpdateType[a.UpdateType]
	if !validTime(a, now) {
		return score
	}
	switch age := now.Sub(*a.PublishedAt); {
	case age < 6*time.Hour:
		score += rw.Within6h
	case age < 24*time.Hour:
		score += rw.Within24h
	case age < 72*time.Hour:
		score += rw.Within72h
	}
	return score
}

// Rank 按分数降序,同分保持输入顺序
func (rw RankWeights) Rank(articles []model.Article, now time.Time) []model.Article {
	type scored struct {
		article model.Article
		score   int
	}
	items := make([]scored, len(articles))
	for i := range articles {
		items[i] = scored{article: articles[i], score: rw.RankScore(&articles[i], now)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	out := make([]model.Article, len(items))
	for i, it := range items {
		out[i] = it.article
	}
	return out
}
