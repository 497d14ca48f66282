package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"ai-news/internal/logger"
	"ai-news/internal/model"
)

const (
	gdeltEndpoint      = "https://api.gdeltproject.org/api/v2/doc/doc"
	gdeltPrimaryQuery  = `("artificial intelligence" OR "machine learning" OR OpenAI OR ChatGPT OR "generative AI") sourcelang:english`
	gdeltFallbackQuery = `"artificial intelligence"`
)

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

type gdeltArticle struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"`
	SocialImage   string `json:"socialimage"`
	Domain        string `json:"domain"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
}

// GDELTAdapter GDELT DOC 2.0 接口
type GDELTAdapter struct {
	client   *Client
	endpoint string
	primary  string
	fallback string
	timespan string
	now      func() time.Time
	log      *slog.Logger
}

func NewGDELTAdapter(client *Client) *GDELTAdapter {
	return &GDELTAdapter{
		client:   client,
		endpoint: gdeltEndpoint,
		primary:  gdeltPrimaryQuery,
		fallback: gdeltFallbackQuery,
		timespan: "2d",
		now:      time.Now,
		log:      logger.With("gdelt"),
	}
}

func (a *GDELTAdapter) Origin() model.Origin {
	return model.OriginGDELT
}

// Fetch 先用主查询,结果为空时改用更宽泛的查询
func (a *GDELTAdapter) Fetch(ctx context.Context) Result {
	articles, err := a.query(ctx, a.primary)
	if len(articles) > 0 {
		return Result{Origin: model.OriginGDELT, Articles: articles}
	}
	if ctx.Err() != nil {
		return finish(a.log, model.OriginGDELT, nil, ctx.Err())
	}

	a.log.Info("primary query returned nothing, trying fallback", "err", err)
	articles, err = a.query(ctx, a.fallback)
	return finish(a.log, model.OriginGDELT, articles, err)
}

func (a *GDELTAdapter) query(ctx context.Context, q string) ([]model.Article, error) {
	params := url.Values{}
	params.Set("query", q)
	params.Set("mode", "artlist")
	params.Set("format", "json")
	params.Set("maxrecords", "75")
	params.Set("sort", "datedesc")
	params.Set("timespan", a.timespan)

	body, err := a.client.Get(ctx, a.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	// 查询被拒绝时 GDELT 返回纯文本而不是 JSON
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "{}" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("%w: %s", ErrParse, truncate(trimmed, 120))
	}

	var resp gdeltResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding gdelt: %w", err)
	}

	now := a.now()
	articles := make([]model.Article, 0, len(resp.Articles))
	for _, item := range resp.Articles {
		if item.URL == "" || item.Title == "" {
			continue
		}
		source := firstNonEmpty(item.Domain, "GDELT")
		articles = append(articles, model.Article{
			Title:       CleanText(item.Title),
			URL:         item.URL,
			ImageURL:    firstNonEmpty(FirstImage(item.SocialImage), PlaceholderImage(source)),
			PublishedAt: PublishedOrNow(item.SeenDate, now),
			Source:      model.Source{Name: source, Type: "gdelt"},
			Origin:      model.OriginGDELT,
			Location:    item.SourceCountry,
		})
	}
	return articles, nil
}
