package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"ai-news/internal/logger"
	"ai-news/internal/model"
)

const gnewsEndpoint = "https://gnews.io/api/v4/search"

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
	Errors        any            `json:"errors"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

// GNewsAdapter gnews.io 搜索接口
type GNewsAdapter struct {
	client   *Client
	endpoint string
	apiKey   string
	now      func() time.Time
	log      *slog.Logger
}

func NewGNewsAdapter(client *Client, apiKey string) *GNewsAdapter {
	return &GNewsAdapter{
		client:   client,
		endpoint: gnewsEndpoint,
		apiKey:   apiKey,
		now:      time.Now,
		log:      logger.With("gnews"),
	}
}

func (a *GNewsAdapter) Origin() model.Origin {
	return model.OriginGNews
}

func (a *GNewsAdapter) Search(ctx context.Context, query string) Result {
	articles, err := a.search(ctx, query)
	return finish(a.log, model.OriginGNews, articles, err)
}

func (a *GNewsAdapter) search(ctx context.Context, query string) ([]model.Article, error) {
	if a.apiKey == "" {
		return nil, ErrDisabled
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("lang", "en")
	params.Set("max", "10")
	params.Set("sortby", "publishedAt")
	params.Set("apikey", a.apiKey)

	body, err := a.client.Get(ctx, a.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && hasRateLimitMarker(statusErr.Body) {
			return nil, fmt.Errorf("gnews: %w", ErrRateLimited)
		}
		return nil, err
	}

	var resp gnewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding gnews: %w", err)
	}
	if resp.Errors != nil {
		msg := fmt.Sprint(resp.Errors)
		if hasRateLimitMarker(msg) {
			return nil, fmt.Errorf("gnews: %w", ErrRateLimited)
		}
		return nil, fmt.Errorf("gnews error: %s", msg)
	}

	now := a.now()
	articles := make([]model.Article, 0, len(resp.Articles))
	for _, item := range resp.Articles {
		if item.URL == "" {
			continue
		}
		source := firstNonEmpty(item.Source.Name, "GNews")
		articles = append(articles, model.Article{
			Title:       CleanText(item.Title),
			Description: truncate(CleanText(firstNonEmpty(item.Description, item.Content)), maxDescriptionLength),
			URL:         item.URL,
			ImageURL:    firstNonEmpty(FirstImage(item.Image), PlaceholderImage(source)),
			PublishedAt: PublishedOrNow(item.PublishedAt, now),
			Source:      model.Source{Name: source, Type: "gnews"},
			Origin:      model.OriginGNews,
			Topics:      []string{query},
		})
	}
	return articles, nil
}

// hasRateLimitMarker 判断响应体中是否带有限流提示
func hasRateLimitMarker(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{"request limit", "rate limit", "too many requests", "quota", "api call frequency"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
