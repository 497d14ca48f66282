package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-news/internal/model"
)

func article(title string) model.Article {
	return model.Article{Title: title, URL: "https://example.com/" + title, Source: model.Source{Name: "Example"}, Origin: model.OriginRSS}
}

func TestEntityTaggingAndPrecedence(t *testing.T) {
	e := New(nil)
	got := e.Article(article("OpenAI ships GPT-4o Turbo"))

	assert.Equal(t, []string{"ChatGPT"}, got.Entities)
	// "ships" is a product signal, which outranks any model signal
	assert.Equal(t, model.UpdateProduct, got.UpdateType)
}

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		title string
		want  model.UpdateType
	}{
		{"Opinion: the new model release nobody asked for", model.UpdateIgnore},
		{"Google launches Gemini with a new model", model.UpdateProduct},
		{"Mistral releases open weights for its new model", model.UpdateModel},
		{"New API endpoints for function calling", model.UpdateAPI},
		{"Researchers publish a benchmark for agents", model.UpdateResearch},
		{"Industry reacts to AI regulation", model.UpdateNews},
	}
	for _, tt := range tests {
		a := article(tt.title)
		assert.Equal(t, tt.want, Classify(DefaultRules, &a), tt.title)
	}
}

func TestClassifyEachRuleAlone(t *testing.T) {
	samples := map[model.UpdateType]string{
		model.UpdateIgnore:   "a podcast episode",
		model.UpdateProduct:  "now available for everyone",
		model.UpdateModel:    "a foundation model",
		model.UpdateAPI:      "the new sdk",
		model.UpdateResearch: "a preprint",
	}
	for _, r := range DefaultRules {
		text, ok := samples[r.Tag]
		if !assert.True(t, ok, "no sample for %s", r.Tag) {
			continue
		}
		a := article(text)
		assert.True(t, r.Match(Doc{Article: &a, Text: text}), "rule %s", r.Tag)
	}
}

func TestArxivOriginIsResearch(t *testing.T) {
	a := article("Sparse attention at scale")
	a.Origin = model.OriginArxiv
	assert.Equal(t, model.UpdateResearch, Classify(DefaultRules, &a))
}

func TestWordBoundaries(t *testing.T) {
	tagger := NewTagger(DefaultEntities)
	assert.Empty(t, tagger.Tag("A grokking study"), "grok inside a word")
	assert.Equal(t, []string{"ChatGPT", "Claude"}, tagger.Tag("Claude vs ChatGPT vs chat gpt"))
	assert.Equal(t, []string{"Gemini"}, tagger.Tag("Bard is now Gemini"))

	a := article("Rapid progress in capital markets")
	assert.Equal(t, model.UpdateNews, Classify(DefaultRules, &a), "api inside capital")
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	info, ok := r.Lookup("Some Feed", "https://www.anthropic.com/news/claude")
	assert.True(t, ok)
	assert.Equal(t, model.TrustHigh, info.Trust)
	assert.Equal(t, model.SourceOfficialBlog, info.SourceType)

	info, ok = r.Lookup("TechCrunch", "")
	assert.True(t, ok)
	assert.Equal(t, model.TrustMedium, info.Trust)

	_, ok = r.Lookup("Random Blog", "https://random.example.com/post")
	assert.False(t, ok)

	info, ok = r.Lookup("", "https://openai.com/index/x")
	assert.True(t, ok)
	assert.Equal(t, model.TrustHigh, info.Trust)
}

func TestEnrichDefaultsUnknownSources(t *testing.T) {
	e := New(nil)
	in := []model.Article{
		{Title: "x", URL: "https://random.example.com/a", Source: model.Source{Name: "Random"}, Origin: model.OriginRSS},
		{Title: "y", URL: "https://other.example.com/b", Source: model.Source{Name: "Other"}, Origin: model.OriginGDELT},
	}
	out := e.Enrich(in)

	assert.Equal(t, model.TrustLow, out[0].Trust)
	assert.Equal(t, model.SourceTechNews, out[0].SourceType)
	assert.Equal(t, model.SourceAggregator, out[1].SourceType)

	assert.Empty(t, in[0].Trust, "input is not mutated")
}
