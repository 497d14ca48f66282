package enrich

import (
	"ai-news/internal/model"
)

// Enricher 给文章打上 updateType、产品实体和来源类型
type Enricher struct {
	rules    []Rule
	tagger   *Tagger
	registry *Registry
}

func New(registry *Registry) *Enricher {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Enricher{
		rules:    DefaultRules,
		tagger:   NewTagger(DefaultEntities),
		registry: registry,
	}
}

// Article 返回富化后的副本,不修改入参
func (e *Enricher) Article(a model.Article) model.Article {
	a.UpdateType = Classify(e.rules, &a)
	a.Entities = e.tagger.Tag(a.Text())

	info, ok := e.registry.Lookup(a.Source.Name, a.URL)
	if !ok {
		info = fallbackInfo(a.Origin)
	}
	a.SourceType = info.SourceType
	a.Trust = info.Trust
	return a
}

// Enrich 逐篇富化,顺序与输入一致
func (e *Enricher) Enrich(articles []model.Article) []model.Article {
	out := make([]model.Article, len(articles))
	for i, a := range articles {
		out[i] = e.Article(a)
	}
	return out
}
