package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"ai-news/internal/logger"
	"ai-news/internal/model"
)

const tavilyEndpoint = "https://api.tavily.com/search"

type tavilyRequest struct {
	Query         string `json:"query"`
	Topic         string `json:"topic"`
	Days          int    `json:"days"`
	MaxResults    int    `json:"max_results"`
	IncludeImages bool   `json:"include_images"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
	Images []string `json:"images"`
	Detail any      `json:"detail"`
}

// TavilyAdapter Tavily 新闻搜索
type TavilyAdapter struct {
	client   *Client
	endpoint string
	apiKey   string
	now      func() time.Time
	log      *slog.Logger
}

func NewTavilyAdapter(client *Client, apiKey string) *TavilyAdapter {
	return &TavilyAdapter{
		client:   client,
		endpoint: tavilyEndpoint,
		apiKey:   apiKey,
		now:      time.Now,
		log:      logger.With("tavily"),
	}
}

func (a *TavilyAdapter) Origin() model.Origin {
	return model.OriginTavily
}

func (a *TavilyAdapter) Search(ctx context.Context, query string) Result {
	articles, err := a.search(ctx, query)
	return finish(a.log, model.OriginTavily, articles, err)
}

func (a *TavilyAdapter) search(ctx context.Context, query string) ([]model.Article, error) {
	if a.apiKey == "" {
		return nil, ErrDisabled
	}

	req := tavilyRequest{
		Query:         query,
		Topic:         "news",
		Days:          3,
		MaxResults:    10,
		IncludeImages: true,
	}
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}

	var resp tavilyResponse
	if err := a.client.PostJSON(ctx, a.endpoint, headers, req, &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && hasRateLimitMarker(statusErr.Body) {
			return nil, fmt.Errorf("tavily: %w", ErrRateLimited)
		}
		return nil, err
	}
	if resp.Detail != nil && hasRateLimitMarker(fmt.Sprint(resp.Detail)) {
		return nil, fmt.Errorf("tavily: %w", ErrRateLimited)
	}

	now := a.now()
	articles := make([]model.Article, 0, len(resp.Results))
	for i, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		source := hostName(r.URL)

		// Tavily 的图片列表与结果不是一一对应,按顺序尽量配上
		var img string
		if i < len(resp.Images) {
			img = FirstImage(resp.Images[i])
		}

		articles = append(articles, model.Article{
			Title:       CleanText(r.Title),
			Description: truncate(CleanText(r.Content), maxDescriptionLength),
			URL:         r.URL,
			ImageURL:    firstNonEmpty(img, PlaceholderImage(source)),
			PublishedAt: PublishedOrNow(r.PublishedDate, now),
			Source:      model.Source{Name: source, Type: "tavily"},
			Origin:      model.OriginTavily,
			Topics:      []string{query},
		})
	}
	return articles, nil
}

// hostName 去掉 www. 的主机名
func hostName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	host := u.Hostname()
	if len(host) > 4 && host[:4] == "www." {
		return host[4:]
	}
	return host
}
