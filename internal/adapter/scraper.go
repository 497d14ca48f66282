package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"ai-news/internal/logger"
	"ai-news/internal/model"
)

const (
	defaultMaxLinks       = 10
	defaultScrapeParallel = 2
	defaultScrapeInterval = 250 * time.Millisecond
)

var errTooManyRedirects = errors.New("more than one redirect")

// ListingPage 需要抓取的列表页
type ListingPage struct {
	Name     string
	URL      string
	MaxLinks int
}

// ScraperAdapter 从出版方的列表页发现文章链接,再逐篇读取 OG 元数据
type ScraperAdapter struct {
	pages     []ListingPage
	userAgent string
	timeout   time.Duration
	parallel  int
	interval  time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func NewScraperAdapter(pages []ListingPage, userAgent string, timeout time.Duration) *ScraperAdapter {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &ScraperAdapter{
		pages:     pages,
		userAgent: userAgent,
		timeout:   timeout,
		parallel:  defaultScrapeParallel,
		interval:  defaultScrapeInterval,
		now:       time.Now,
		log:       logger.With("scraper"),
	}
}

func (a *ScraperAdapter) Origin() model.Origin {
	return model.OriginScraper
}

func (a *ScraperAdapter) Fetch(ctx context.Context) Result {
	var articles []model.Article
	failed := 0
	for _, page := range a.pages {
		items, err := a.ScrapePage(ctx, page)
		if err != nil {
			failed++
			a.log.Warn("listing page failed", "page", page.Name, "err", err)
			continue
		}
		articles = append(articles, items...)
	}

	if len(a.pages) > 0 && failed == len(a.pages) {
		return finish(a.log, model.OriginScraper, nil, fmt.Errorf("all %d listing pages failed", failed))
	}
	return Result{Origin: model.OriginScraper, Articles: articles}
}

// newCollector 每个站点共用同一个限速器,重定向最多跟随一次
func (a *ScraperAdapter) newCollector(ctx context.Context, limiter *rate.Limiter, async bool) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(a.userAgent),
		colly.MaxDepth(1),
	)
	c.Async = async
	c.SetRequestTimeout(a.timeout)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: a.parallel})

	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) > 1 {
			return errTooManyRedirects
		}
		return nil
	})

	c.OnRequest(func(r *colly.Request) {
		if err := limiter.Wait(ctx); err != nil {
			r.Abort()
		}
	})
	return c
}

// ScrapePage 抓取单个列表页
func (a *ScraperAdapter) ScrapePage(ctx context.Context, page ListingPage) ([]model.Article, error) {
	listing, err := url.Parse(page.URL)
	if err != nil || listing.Hostname() == "" {
		return nil, fmt.Errorf("invalid listing url %q", page.URL)
	}

	maxLinks := page.MaxLinks
	if maxLinks <= 0 {
		maxLinks = defaultMaxLinks
	}
	limiter := rate.NewLimiter(rate.Every(a.interval), 1)

	links, err := a.discover(ctx, limiter, listing, maxLinks)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	return a.collect(ctx, limiter, page, links), nil
}

// discover 解析列表页中的链接:同站、http(s)、按规范化 URL 去重,最多 maxLinks 个
func (a *ScraperAdapter) discover(ctx context.Context, limiter *rate.Limiter, listing *url.URL, maxLinks int) ([]string, error) {
	c := a.newCollector(ctx, limiter, false)

	listingKey := model.NormalizeURL(stripFragment(listing))
	prefix := strings.TrimRight(listing.Path, "/") + "/"

	var (
		links    []string
		seen     = map[string]bool{listingKey: true}
		visitErr error
	)

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		abs := e.Request.AbsoluteURL(e.Attr("href"))
		u, err := url.Parse(abs)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if !sameSite(u.Hostname(), listing.Hostname()) {
			return
		}
		key := model.NormalizeURL(stripFragment(u))
		if seen[key] || !articleLink(u.Path, prefix) {
			return
		}
		seen[key] = true
		links = append(links, key)
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("listing %s: %w", listing, err)
	})

	if err := c.Visit(listing.String()); err != nil {
		return nil, fmt.Errorf("visiting %s: %w", listing, err)
	}
	if visitErr != nil {
		return nil, visitErr
	}

	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	return links, nil
}

// articleLink 只收列表路径下的链接;列表页是站点根时要求至少两级路径,
// /about、/careers 这类导航页不算文章
func articleLink(path, prefix string) bool {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return false
	}
	if prefix == "/" {
		return strings.Contains(trimmed, "/")
	}
	return strings.HasPrefix(path, prefix)
}

// collect 并发读取每篇文章的元数据
func (a *ScraperAdapter) collect(ctx context.Context, limiter *rate.Limiter, page ListingPage, links []string) []model.Article {
	c := a.newCollector(ctx, limiter, true)
	now := a.now()

	var (
		mu       sync.Mutex
		articles = make(map[string]model.Article, len(links))
	)

	c.OnHTML("html", func(e *colly.HTMLElement) {
		title := firstNonEmpty(
			e.ChildAttr(`meta[property="og:title"]`, "content"),
			e.ChildAttr(`meta[name="twitter:title"]`, "content"),
			e.ChildText("title"),
		)
		if strings.TrimSpace(title) == "" {
			return
		}

		desc := firstNonEmpty(
			e.ChildAttr(`meta[property="og:description"]`, "content"),
			e.ChildAttr(`meta[name="description"]`, "content"),
		)
		published := firstNonEmpty(
			e.ChildAttr(`meta[property="article:published_time"]`, "content"),
			e.ChildAttr(`meta[name="publish-date"]`, "content"),
			e.ChildAttr(`meta[itemprop="datePublished"]`, "content"),
			e.ChildAttr("time[datetime]", "datetime"),
		)
		image := FirstImage(
			absURL(e, e.ChildAttr(`meta[property="og:image"]`, "content")),
			absURL(e, e.ChildAttr(`meta[name="twitter:image"]`, "content")),
			absURL(e, e.DOM.Find("article img[src]").First().AttrOr("src", "")),
		)

		link := e.Request.Ctx.Get("link")
		if link == "" {
			link = e.Request.URL.String()
		}

		mu.Lock()
		articles[link] = model.Article{
			Title:       CleanText(title),
			Description: truncate(CleanText(desc), maxDescriptionLength),
			URL:         link,
			ImageURL:    firstNonEmpty(image, PlaceholderImage(page.Name)),
			PublishedAt: PublishedOrNow(published, now),
			Source:      model.Source{Name: page.Name, Type: "scraper"},
			Origin:      model.OriginScraper,
		}
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		a.log.Debug("article fetch failed", "url", r.Request.URL.String(), "err", err)
	})

	for _, link := range links {
		reqCtx := colly.NewContext()
		reqCtx.Put("link", link)
		if err := c.Request(http.MethodGet, link, nil, reqCtx, nil); err != nil {
			a.log.Debug("article visit rejected", "url", link, "err", err)
		}
	}
	c.Wait()

	// 按发现顺序输出
	out := make([]model.Article, 0, len(articles))
	for _, link := range links {
		if art, ok := articles[link]; ok {
			out = append(out, art)
		}
	}
	return out
}

func absURL(e *colly.HTMLElement, s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return e.Request.AbsoluteURL(s)
}

func stripFragment(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	clone.RawFragment = ""
	return clone.String()
}

func sameSite(host, base string) bool {
	return strings.TrimPrefix(strings.ToLower(host), "www.") == strings.TrimPrefix(strings.ToLower(base), "www.")
}
