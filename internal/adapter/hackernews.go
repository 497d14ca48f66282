package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"ai-news/internal/logger"
	"ai-news/internal/model"
)

const (
	hnEndpoint      = "https://hn.algolia.com/api/v1/search_by_date"
	hnPrimaryQuery  = "LLM OpenAI GPT"
	hnFallbackQuery = "AI"
	hnMinPoints     = 20
)

type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

type algoliaHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAt   string `json:"created_at"`
	StoryText   string `json:"story_text"`
}

// HackerNewsAdapter 通过 Algolia 搜索 Hacker News
type HackerNewsAdapter struct {
	client   *Client
	endpoint string
	primary  string
	fallback string
	window   time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewHackerNewsAdapter(client *Client) *HackerNewsAdapter {
	return &HackerNewsAdapter{
		client:   client,
		endpoint: hnEndpoint,
		primary:  hnPrimaryQuery,
		fallback: hnFallbackQuery,
		window:   72 * time.Hour,
		now:      time.Now,
		log:      logger.With("hackernews"),
	}
}

func (a *HackerNewsAdapter) Origin() model.Origin {
	return model.OriginHackerNews
}

// Fetch 主查询带积分门槛,没有结果时去掉门槛用宽泛关键词重试
func (a *HackerNewsAdapter) Fetch(ctx context.Context) Result {
	articles, err := a.query(ctx, a.primary, hnMinPoints)
	if len(articles) > 0 {
		return Result{Origin: model.OriginHackerNews, Articles: articles}
	}
	if ctx.Err() != nil {
		return finish(a.log, model.OriginHackerNews, nil, ctx.Err())
	}

	a.log.Info("primary query returned nothing, trying fallback", "err", err)
	articles, err = a.query(ctx, a.fallback, 0)
	return finish(a.log, model.OriginHackerNews, articles, err)
}

func (a *HackerNewsAdapter) query(ctx context.Context, q string, minPoints int) ([]model.Article, error) {
	now := a.now()

	filters := fmt.Sprintf("created_at_i>%d", now.Add(-a.window).Unix())
	if minPoints > 0 {
		filters += fmt.Sprintf(",points>%d", minPoints)
	}

	params := url.Values{}
	params.Set("query", q)
	params.Set("tags", "story")
	params.Set("numericFilters", filters)
	params.Set("hitsPerPage", "50")

	var resp algoliaResponse
	if err := a.client.GetJSON(ctx, a.endpoint+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if hit.Title == "" {
			continue
		}
		link := hit.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}

		desc := CleanText(hit.StoryText)
		if desc == "" {
			desc = strconv.Itoa(hit.Points) + " points · " + strconv.Itoa(hit.NumComments) + " comments on Hacker News"
		}

		articles = append(articles, model.Article{
			Title:       CleanText(hit.Title),
			Description: truncate(desc, maxDescriptionLength),
			URL:         link,
			ImageURL:    PlaceholderImage("Hacker News"),
			PublishedAt: PublishedOrNow(hit.CreatedAt, now),
			Source:      model.Source{Name: "Hacker News", Type: "aggregator"},
			Origin:      model.OriginHackerNews,
		})
	}
	return articles, nil
}
