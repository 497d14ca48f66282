package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ai-news/internal/logger"
	"ai-news/internal/model"
)

const (
	perplexityEndpoint = "https://api.perplexity.ai/chat/completions"
	perplexityPrompt   = `You are a news research assistant. Find the most recent news articles (last 3 days) about the topic the user gives you.
Return ONLY a JSON array, no prose. Each element: {"title": "...", "description": "one or two sentences", "url": "https://...", "source": "publisher name", "publishedAt": "ISO 8601 date"}.
Return at most 8 articles and only include articles with a real, working URL.`
)

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

type perplexityArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt"`
}

// PerplexityAdapter 通过 Perplexity 聊天接口检索新闻
type PerplexityAdapter struct {
	client   *Client
	endpoint string
	apiKey   string
	model    string
	now      func() time.Time
	log      *slog.Logger
}

func NewPerplexityAdapter(client *Client, apiKey, modelName string) *PerplexityAdapter {
	if modelName == "" {
		modelName = "sonar"
	}
	return &PerplexityAdapter{
		client:   client,
		endpoint: perplexityEndpoint,
		apiKey:   apiKey,
		model:    modelName,
		now:      time.Now,
		log:      logger.With("perplexity"),
	}
}

func (a *PerplexityAdapter) Origin() model.Origin {
	return model.OriginPerplexity
}

func (a *PerplexityAdapter) Search(ctx context.Context, query string) Result {
	articles, err := a.search(ctx, query)
	return finish(a.log, model.OriginPerplexity, articles, err)
}

// Chat 调用聊天接口
func (a *PerplexityAdapter) Chat(ctx context.Context, prompt, content string) (*ChatResponse, error) {
	if a.apiKey == "" {
		return nil, ErrDisabled
	}

	reqBody := ChatRequest{
		Model: a.model,
		Messages: []Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: content},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}

	var chatResp ChatResponse
	if err := a.client.PostJSON(ctx, a.endpoint, headers, reqBody, &chatResp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && hasRateLimitMarker(statusErr.Body) {
			return nil, fmt.Errorf("perplexity: %w", ErrRateLimited)
		}
		return nil, err
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from perplexity", ErrParse)
	}
	return &chatResp, nil
}

func (a *PerplexityAdapter) search(ctx context.Context, query string) ([]model.Article, error) {
	resp, err := a.Chat(ctx, perplexityPrompt, query)
	if err != nil {
		return nil, err
	}

	items, err := parseArticleArray(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	now := a.now()
	articles := make([]model.Article, 0, len(items))
	for _, item := range items {
		if !isHTTP(item.URL) || item.Title == "" {
			continue
		}
		source := firstNonEmpty(item.Source, hostName(item.URL))
		articles = append(articles, model.Article{
			Title:       CleanText(item.Title),
			Description: truncate(CleanText(item.Description), maxDescriptionLength),
			URL:         item.URL,
			ImageURL:    PlaceholderImage(source),
			PublishedAt: PublishedOrNow(item.PublishedAt, now),
			Source:      model.Source{Name: source, Type: "perplexity"},
			Origin:      model.OriginPerplexity,
			Topics:      []string{query},
		})
	}
	return articles, nil
}

// parseArticleArray 模型经常在 JSON 外面包一层说明或代码块,只取第一个 [ 到最后一个 ] 之间
func parseArticleArray(content string) ([]perplexityArticle, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array in response", ErrParse)
	}

	var items []perplexityArticle
	if err := json.Unmarshal([]byte(content[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("decoding perplexity articles: %w", err)
	}
	return items, nil
}
