package service

import (
	"time"

	"ai-news/internal/model"
)

// MockArticles 上游全部不可用或内部出错时返回的示例数据
func MockArticles(now time.Time) []model.Article {
	at := func(h int) *time.Time {
		t := now.Add(-time.Duration(h) * time.Hour)
		return &t
	}
	src := func(name string) model.Source {
		return model.Source{Name: name, Type: "mock"}
	}

	return []model.Article{
		{
			Title:       "OpenAI expands ChatGPT with new tools for developers",
			Description: "New capabilities in the API let developers build agents on top of GPT models.",
			URL:         "https://example.com/mock/openai-tools",
			PublishedAt: at(2),
			Source:      src("OpenAI News"),
			Origin:      model.OriginRSS,
			UpdateType:  model.UpdateProduct,
			Entities:    []string{"ChatGPT"},
			SourceType:  model.SourceOfficialBlog,
			Trust:       model.TrustHigh,
		},
		{
			Title:       "Anthropic releases a new Claude model",
			Description: "The release improves reasoning and coding performance across benchmarks.",
			URL:         "https://example.com/mock/claude-model",
			PublishedAt: at(5),
			Source:      src("Anthropic News"),
			Origin:      model.OriginScraper,
			UpdateType:  model.UpdateModel,
			Entities:    []string{"Claude"},
			SourceType:  model.SourceOfficialBlog,
			Trust:       model.TrustHigh,
		},
		{
			Title:       "Google DeepMind details Gemini research on long context",
			Description: "Researchers describe new techniques for training multimodal models.",
			URL:         "https://example.com/mock/gemini-research",
			PublishedAt: at(20),
			Source:      src("Google DeepMind"),
			Origin:      model.OriginRSS,
			UpdateType:  model.UpdateResearch,
			Entities:    []string{"Gemini"},
			SourceType:  model.SourceResearchLab,
			Trust:       model.TrustHigh,
		},
		{
			Title:       "Open-weight Llama models gain enterprise adoption",
			Description: "Companies are deploying open models for internal AI assistants.",
			URL:         "https://example.com/mock/llama-enterprise",
			PublishedAt: at(30),
			Source:      src("TechCrunch"),
			Origin:      model.OriginRSS,
			UpdateType:  model.UpdateNews,
			Entities:    []string{"Llama"},
			SourceType:  model.SourceTechNews,
			Trust:       model.TrustMedium,
		},
		{
			Title:       "New benchmark measures AI agent reliability",
			Description: "A paper on arXiv proposes a dataset for evaluating tool-using language model agents.",
			URL:         "https://example.com/mock/agent-benchmark",
			PublishedAt: at(48),
			Source:      src("arXiv"),
			Origin:      model.OriginArxiv,
			UpdateType:  model.UpdateResearch,
			SourceType:  model.SourceResearchLab,
			Trust:       model.TrustHigh,
		},
	}
}
