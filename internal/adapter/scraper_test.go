package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func articlePage(title, published string) string {
	return fmt.Sprintf(`<html><head>
<title>fallback title</title>
<meta property="og:title" content="%s">
<meta property="og:description" content="About &amp; more">
<meta property="og:image" content="/img/cover.png">
<meta property="article:published_time" content="%s">
</head><body><article><p>Body</p></article></body></html>`, title, published)
}

func newScraperServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<a href="/news/first">First</a>
<a href="/news/first/">First again</a>
<a href="/news/first#comments">First comments</a>
<a href="/news/hop">One hop</a>
<a href="/news/loop">Two hops</a>
<a href="/news/third">Third</a>
<a href="/about">About</a>
<a href="https://elsewhere.example.org/news/x">Elsewhere</a>
<a href="mailto:press@example.com">Mail</a>
</body></html>`)
	})
	mux.HandleFunc("/news/first", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("First post", "2025-01-02T10:00:00Z"))
	})
	mux.HandleFunc("/news/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/news/hop-target", http.StatusFound)
	})
	mux.HandleFunc("/news/hop-target", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("Redirected post", "2025-01-03T10:00:00Z"))
	})
	mux.HandleFunc("/news/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/news/loop-1", http.StatusFound)
	})
	mux.HandleFunc("/news/loop-1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/news/loop-2", http.StatusFound)
	})
	mux.HandleFunc("/news/loop-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("Should not be reached", "2025-01-04T10:00:00Z"))
	})
	mux.HandleFunc("/news/third", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("Third post", "garbage"))
	})
	return httptest.NewServer(mux)
}

func TestScraperDiscoversAndCollects(t *testing.T) {
	srv := newScraperServer(t)
	defer srv.Close()

	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	a := NewScraperAdapter(nil, "ai-news-test", 5*time.Second)
	a.interval = time.Millisecond
	a.now = func() time.Time { return now }

	articles, err := a.ScrapePage(context.Background(), ListingPage{Name: "Example Lab", URL: srv.URL + "/news", MaxLinks: 10})
	require.NoError(t, err)

	var titles []string
	for _, art := range articles {
		titles = append(titles, art.Title)
	}
	assert.Equal(t, []string{"First post", "Redirected post", "Third post"}, titles)

	first := articles[0]
	assert.Equal(t, srv.URL+"/news/first", first.URL)
	assert.Equal(t, "About & more", first.Description)
	assert.Equal(t, srv.URL+"/img/cover.png", first.ImageURL)
	assert.Equal(t, 2, first.PublishedAt.Day())
	assert.Equal(t, "Example Lab", first.Source.Name)

	assert.True(t, now.Equal(*articles[2].PublishedAt), "unparsable date defaults to now")
}

func TestScraperCapsLinks(t *testing.T) {
	srv := newScraperServer(t)
	defer srv.Close()

	a := NewScraperAdapter(nil, "", 5*time.Second)
	a.interval = time.Millisecond

	articles, err := a.ScrapePage(context.Background(), ListingPage{Name: "Example", URL: srv.URL + "/news", MaxLinks: 1})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "First post", articles[0].Title)
}

func TestScraperFetchFailsWhenAllPagesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	a := NewScraperAdapter([]ListingPage{{Name: "Gone", URL: srv.URL + "/news"}}, "", time.Second)
	a.interval = time.Millisecond

	res := a.Fetch(context.Background())
	assert.False(t, res.OK())
	assert.Empty(t, res.Articles)
}

func TestScraperSkipsNavigationLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/about">About</a><a href="/careers">Careers</a></body></html>`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			fmt.Fprint(w, articlePage("Page "+r.URL.Path, "2025-01-02T10:00:00Z"))
			return
		}
		fmt.Fprint(w, `<html><body>
<a href="/about">About</a>
<a href="/careers">Careers</a>
<a href="/blog/launch-notes">Launch notes</a>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewScraperAdapter(nil, "", 5*time.Second)
	a.interval = time.Millisecond

	articles, err := a.ScrapePage(context.Background(), ListingPage{Name: "Example", URL: srv.URL + "/news"})
	require.NoError(t, err)
	assert.Empty(t, articles, "no links under the listing path")

	articles, err = a.ScrapePage(context.Background(), ListingPage{Name: "Example", URL: srv.URL + "/"})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Page /blog/launch-notes", articles[0].Title)
}

func TestArticleLink(t *testing.T) {
	assert.True(t, articleLink("/news/first", "/news/"))
	assert.False(t, articleLink("/about", "/news/"))
	assert.False(t, articleLink("/", "/"))
	assert.False(t, articleLink("/careers/", "/"))
	assert.True(t, articleLink("/blog/post", "/"))
}
