package service

import (
	"sort"
	"time"

	"ai-news/internal/enrich"
	"ai-news/internal/model"
	"ai-news/internal/ranking"
)

// ProcessorService 合并来源池,富化、过滤并排序
type ProcessorService struct {
	enricher *enrich.Enricher
	weights  ranking.Weights
	rank     ranking.RankWeights
}

func NewProcessorService(enricher *enrich.Enricher, weights ranking.Weights) *ProcessorService {
	return &ProcessorService{
		enricher: enricher,
		weights:  weights,
		rank:     ranking.DefaultRankWeights(),
	}
}

// Merge 按来源池的固定顺序拼接并去重,先出现的保留
func Merge(order []model.Origin, pools map[model.Origin][]model.Article) []model.Article {
	var all []model.Article
	for _, origin := range order {
		all = append(all, pools[origin]...)
	}
	return ranking.Dedupe(all)
}

// Prepare 去重后的文章富化并通过内容过滤
func (s *ProcessorService) Prepare(merged []model.Article) []model.Article {
	return ranking.Apply(s.enricher.Enrich(merged), s.weights.ContentFilter())
}

// Select 应用请求条件并按发布时间排序
func (s *ProcessorService) Select(prepared []model.Article, opts ranking.Options, now time.Time) []model.Article {
	opts.Now = now
	return ranking.SortByPublished(ranking.Apply(prepared, ranking.RequestFilters(opts)...), now)
}

// Ranked 用于栏目组装的加权排序
func (s *ProcessorService) Ranked(prepared []model.Article, now time.Time) []model.Article {
	return s.rank.Rank(ranking.SortByPublished(prepared, now), now)
}

// AvailableSources 出现过的来源名称,按字母排序
func AvailableSources(articles []model.Article) []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range articles {
		if a.Source.Name == "" || seen[a.Source.Name] {
			continue
		}
		seen[a.Source.Name] = true
		names = append(names, a.Source.Name)
	}
	sort.Strings(names)
	return names
}

// SourceBreakdown 按来源名称统计
func SourceBreakdown(articles []model.Article) map[string]int {
	out := make(map[string]int)
	for _, a := range articles {
		out[a.Source.Name]++
	}
	return out
}
