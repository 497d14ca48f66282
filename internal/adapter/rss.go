package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"ai-news/internal/logger"
	"ai-news/internal/model"
)

const (
	maxDescriptionLength = 500
	defaultFeedWorkers   = 4
)

// RSSAdapter 抓取数据库中启用的订阅源,origin 决定读取哪一组 Feed
type RSSAdapter struct {
	db          *gorm.DB
	origin      model.Origin
	client      *Client
	feedTimeout time.Duration
	workers     int
	now         func() time.Time
	log         *slog.Logger
}

func NewRSSAdapter(db *gorm.DB, origin model.Origin, client *Client, feedTimeout time.Duration) *RSSAdapter {
	return &RSSAdapter{
		db:          db,
		origin:      origin,
		client:      client,
		feedTimeout: feedTimeout,
		workers:     defaultFeedWorkers,
		now:         time.Now,
		log:         logger.With("rss"),
	}
}

func (a *RSSAdapter) Origin() model.Origin {
	return a.origin
}

// Fetch 并发抓取所有启用的 Feed,单个 Feed 失败不影响其他 Feed
func (a *RSSAdapter) Fetch(ctx context.Context) Result {
	var feeds []model.Feed
	if err := a.db.WithContext(ctx).Where("enabled = ? AND origin = ?", true, a.origin).Find(&feeds).Error; err != nil {
		return finish(a.log, a.origin, nil, fmt.Errorf("loading feeds: %w", err))
	}

	var (
		mu       sync.Mutex
		articles []model.Article
		failed   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, feed := range feeds {
		feed := feed
		g.Go(func() error {
			items, err := a.FetchFeed(gctx, feed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				a.log.Warn("feed fetch failed", "feed", feed.Name, "err", err)
				return nil
			}
			articles = append(articles, items...)
			return nil
		})
	}
	_ = g.Wait()

	if len(feeds) > 0 && failed == len(feeds) {
		return finish(a.log, a.origin, nil, fmt.Errorf("all %d feeds failed", failed))
	}

	a.log.Info("feeds fetched", "origin", a.origin, "feeds", len(feeds), "failed", failed, "articles", len(articles))
	return Result{Origin: a.origin, Articles: articles}
}

// FetchFeed 抓取单个 Feed
func (a *RSSAdapter) FetchFeed(ctx context.Context, feed model.Feed) ([]model.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, a.feedTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = a.client.HTTP()
	parser.UserAgent = a.client.UserAgent()

	parsed, err := parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", feed.Name, err)
	}

	now := a.now()
	articles := make([]model.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		articles = append(articles, a.toArticle(feed, item, now))
	}
	return articles, nil
}

func (a *RSSAdapter) toArticle(feed model.Feed, item *gofeed.Item, now time.Time) model.Article {
	desc := firstNonEmpty(item.Description, item.Content)

	return model.Article{
		Title:       CleanText(item.Title),
		Description: truncate(CleanText(desc), maxDescriptionLength),
		URL:         item.Link,
		ImageURL:    itemImage(feed.Name, item),
		PublishedAt: itemTime(item, now),
		Source:      model.Source{Name: feed.Name, Type: string(feed.Origin)},
		Origin:      a.origin,
		Topics:      item.Categories,
	}
}

func itemTime(item *gofeed.Item, now time.Time) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := *item.PublishedParsed
		return &t
	case item.UpdatedParsed != nil:
		t := *item.UpdatedParsed
		return &t
	default:
		return PublishedOrNow(firstNonEmpty(item.Published, item.Updated), now)
	}
}

// itemImage 依次检查 media:content、media:thumbnail、item 图片、内联 <img>、enclosure
func itemImage(source string, item *gofeed.Item) string {
	var itemImg string
	if item.Image != nil {
		itemImg = item.Image.URL
	}

	img := FirstImage(
		mediaURL(item.Extensions, "content"),
		mediaURL(item.Extensions, "thumbnail"),
		itemImg,
		InlineImage(item.Content),
		InlineImage(item.Description),
		enclosureImage(item.Enclosures),
	)
	if img == "" {
		return PlaceholderImage(source)
	}
	return img
}

func mediaURL(exts ext.Extensions, name string) string {
	media, ok := exts["media"]
	if !ok {
		return ""
	}

	for _, e := range media[name] {
		if u := e.Attrs["url"]; u != "" && isImageMedia(e) {
			return u
		}
	}

	// media:group 包裹的情况
	for _, group := range media["group"] {
		for _, e := range group.Children[name] {
			if u := e.Attrs["url"]; u != "" && isImageMedia(e) {
				return u
			}
		}
	}
	return ""
}

func isImageMedia(e ext.Extension) bool {
	medium, typ := e.Attrs["medium"], e.Attrs["type"]
	if medium == "" && typ == "" {
		return true
	}
	return medium == "image" || strings.HasPrefix(typ, "image/")
}

func enclosureImage(enclosures []*gofeed.Enclosure) string {
	for _, enc := range enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
