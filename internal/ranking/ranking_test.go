package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-news/internal/model"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func art(title, url string) model.Article {
	return model.Article{Title: title, URL: url, Source: model.Source{Name: "Example"}, Trust: model.TrustLow}
}

func titles(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}

func TestConsumerVetoDominates(t *testing.T) {
	w := DefaultWeights()
	a := art("OpenAI Black Friday Deal on ChatGPT Plus", "https://example.com/deal")
	a.Description = "OpenAI GPT-4o ChatGPT Claude Gemini LLM generative AI breakthrough for developers"

	s := w.Score(&a)
	assert.Equal(t, 0, s.Relevance)
	assert.False(t, w.Passes(s))

	out := Apply([]model.Article{a}, w.ContentFilter())
	assert.Empty(t, out)
}

func TestPricePatterns(t *testing.T) {
	w := DefaultWeights()

	priced := art("ChatGPT Plus now costs $20 with GPT-4o", "https://example.com/a")
	assert.Equal(t, 0, w.Score(&priced).Relevance)

	funding := art("Anthropic raises $4 billion to train Claude models", "https://example.com/b")
	assert.Greater(t, w.Score(&funding).Relevance, 0)
}

func TestScoreComponents(t *testing.T) {
	w := DefaultWeights()

	a := art("OpenAI ships GPT-4o Turbo", "https://example.com/x")
	s := w.Score(&a)
	// base + 2 high hits - missing industry context
	assert.Equal(t, 10+40-10, s.Relevance)
	assert.Equal(t, 40, s.AIFocus)
	assert.True(t, w.Passes(s))

	weak := art("Weather is nice today", "https://example.com/w")
	assert.False(t, w.Passes(w.Score(&weak)))

	premium := a
	premium.Source.Name = "OpenAI News"
	assert.Equal(t, s.Relevance+w.PremiumSource, w.Score(&premium).Relevance)
}

func TestTrustedSourcesSkipContentFilters(t *testing.T) {
	w := DefaultWeights()
	tutorial := art("How to fine-tune a large language model: tutorial", "https://example.com/t")

	assert.Empty(t, Apply([]model.Article{tutorial}, w.ContentFilter()))

	tutorial.Trust = model.TrustHigh
	assert.Len(t, Apply([]model.Article{tutorial}, w.ContentFilter()), 1)

	// query matching still applies to trusted sources
	assert.Empty(t, Apply([]model.Article{tutorial}, w.ContentFilter(), QueryFilter("gemini")))
}

func TestContentFilterIgnoresUpdateType(t *testing.T) {
	w := DefaultWeights()
	a := art("OpenAI ships GPT-4o Turbo for developers, CEO says in interview", "https://example.com/gpt")
	a.UpdateType = model.UpdateIgnore
	assert.Len(t, Apply([]model.Article{a}, w.ContentFilter()), 1)

	a.UpdateType = ""
	assert.Len(t, Apply([]model.Article{a}, w.ContentFilter()), 1)

	trusted := art("Podcast: our research roadmap", "https://openai.com/podcast")
	trusted.Trust = model.TrustHigh
	trusted.UpdateType = model.UpdateIgnore
	assert.Len(t, Apply([]model.Article{trusted}, w.ContentFilter()), 1)
}

func TestFiltersFromOptions(t *testing.T) {
	w := DefaultWeights()
	w.MinRelevance = 0
	w.MinAIFocus = 0

	official := model.Article{
		Title: "Gemini 2 launches", URL: "https://blog.google/gemini", PublishedAt: at(2 * time.Hour),
		Source: model.Source{Name: "Google AI"}, Entities: []string{"Gemini"}, UpdateType: model.UpdateProduct,
		SourceType: model.SourceResearchLab, Trust: model.TrustHigh, Topics: []string{"Machine Learning"},
	}
	uk := model.Article{
		Title: "UK AI safety institute model study", URL: "https://www.bbc.co.uk/news/ai", PublishedAt: at(10 * 24 * time.Hour),
		Source: model.Source{Name: "BBC"}, UpdateType: model.UpdateResearch, SourceType: model.SourceTechNews, Trust: model.TrustMedium,
	}
	hn := model.Article{
		Title: "Show HN: an AI agent framework", URL: "https://news.ycombinator.com/item?id=1", PublishedAt: at(30 * time.Hour),
		Source: model.Source{Name: "Hacker News"}, Origin: model.OriginHackerNews, SourceType: model.SourceAggregator, Trust: model.TrustLow,
		UpdateType: model.UpdateNews,
	}
	all := []model.Article{official, uk, hn}

	run := func(o Options) []string {
		o.Now = now
		return titles(Apply(all, append([]Filter{w.ContentFilter()}, RequestFilters(o)...)...))
	}

	assert.Equal(t, []string{official.Title}, run(Options{Section: SectionToday}))
	assert.Equal(t, []string{official.Title}, run(Options{Section: SectionProductUpdates}))
	assert.Equal(t, []string{uk.Title}, run(Options{Section: SectionResearch}))
	assert.Equal(t, []string{hn.Title}, run(Options{Section: SectionOtherPlatforms}))
	assert.Equal(t, []string{official.Title, uk.Title, hn.Title}, run(Options{Section: SectionAll}))
	assert.Equal(t, []string{uk.Title}, run(Options{Source: "bbc"}))
	assert.Equal(t, []string{official.Title, hn.Title}, run(Options{Sources: []string{"Google AI", "Hacker News"}}))
	assert.Equal(t, []string{official.Title}, run(Options{Topics: []string{"machine learning"}}))
	assert.Equal(t, []string{official.Title, hn.Title}, run(Options{Time: "Past week"}))
	assert.Equal(t, []string{uk.Title}, run(Options{Locations: []string{"United Kingdom"}}))
	assert.Equal(t, []string{official.Title}, run(Options{Product: "Gemini"}))
	assert.Equal(t, []string{official.Title}, run(Options{Platform: PlatformOfficial}))
	assert.Equal(t, []string{uk.Title, hn.Title}, run(Options{Platform: PlatformOther}))
	assert.Equal(t, []string{hn.Title}, run(Options{Query: "agent framework"}))
}

func TestDedupeIdempotent(t *testing.T) {
	in := []model.Article{
		art("first", "https://example.com/a"),
		art("dup", "https://example.com/a/"),
		art("second", "https://example.com/b"),
		art("dup2", "https://example.com/b"),
	}
	once := Dedupe(in)
	twice := Dedupe(once)

	assert.Equal(t, []string{"first", "second"}, titles(once))
	assert.Equal(t, once, twice)
}

func TestSortByPublished(t *testing.T) {
	future := now.Add(time.Hour)
	in := []model.Article{
		{Title: "null"},
		{Title: "future", PublishedAt: &future},
		{Title: "t1", PublishedAt: at(3 * time.Hour)},
		{Title: "t3", PublishedAt: at(1 * time.Hour)},
		{Title: "t2", PublishedAt: at(2 * time.Hour)},
	}
	out := SortByPublished(in, now)
	assert.Equal(t, []string{"t3", "t2", "t1", "null", "future"}, titles(out))
	assert.Equal(t, "null", in[0].Title, "input untouched")
}

func TestRank(t *testing.T) {
	rw := DefaultRankWeights()
	in := []model.Article{
		{Title: "old research", URL: "a", Trust: model.TrustHigh, UpdateType: model.UpdateResearch, PublishedAt: at(100 * time.Hour)},
		{Title: "fresh product", URL: "b", Trust: model.TrustLow, UpdateType: model.UpdateProduct, PublishedAt: at(time.Hour)},
		{Title: "tie one", URL: "c", Trust: model.TrustMedium, UpdateType: model.UpdateNews, PublishedAt: at(48 * time.Hour)},
		{Title: "tie two", URL: "d", Trust: model.TrustMedium, UpdateType: model.UpdateNews, PublishedAt: at(50 * time.Hour)},
	}
	out := rw.Rank(in, now)
	require.Len(t, out, 4)

	assert.Equal(t, 10+40+30, rw.RankScore(&in[1], now))
	assert.Equal(t, 30+10, rw.RankScore(&in[0], now))
	assert.Equal(t, []string{"fresh product", "old research", "tie one", "tie two"}, titles(out))
}
