package adapter

import (
	"hash/fnv"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	cdataRe      = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	tagRe        = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText 解码 HTML/XML 实体,去掉 CDATA 与标签,合并空白
func CleanText(s string) string {
	if s == "" {
		return ""
	}

	s = cdataRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "<![CDATA[", "")
	s = strings.ReplaceAll(s, "]]>", "")

	// 有些上游把转义后的 HTML 放进文本节点,解析后还会剩下标签,最多再剥一层
	for i := 0; i < 2; i++ {
		s = stripMarkup(s)
		if !tagRe.MatchString(s) {
			break
		}
	}

	// 双重转义的实体,如 &amp;#39;
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func stripMarkup(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return tagRe.ReplaceAllString(html.UnescapeString(s), " ")
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br, p, div, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return doc.Text()
}

// InlineImage 返回 HTML 片段中第一张 <img> 的地址
func InlineImage(fragment string) string {
	if !strings.Contains(fragment, "<img") && !strings.Contains(fragment, "&lt;img") {
		return ""
	}
	if !strings.Contains(fragment, "<img") {
		fragment = html.UnescapeString(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var src string
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := sel.Attr(attr); ok && isHTTP(v) {
				src = v
				return false
			}
		}
		return true
	})
	return src
}

// FirstImage 按优先级返回第一个有效的图片地址
func FirstImage(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if isHTTP(c) {
			return c
		}
	}
	return ""
}

var placeholders = []string{
	"https://images.unsplash.com/photo-1677442136019-21780ecad995?w=800",
	"https://images.unsplash.com/photo-1620712943543-bcc4688e7485?w=800",
	"https://images.unsplash.com/photo-1485827404703-89b55fcc595e?w=800",
	"https://images.unsplash.com/photo-1555255707-c07966088b7b?w=800",
	"https://images.unsplash.com/photo-1531746790731-6c087fecd65a?w=800",
	"https://images.unsplash.com/photo-1518770660439-4636190af475?w=800",
}

// PlaceholderImage 每个来源对应一张固定的占位图
func PlaceholderImage(source string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(source)))
	return placeholders[h.Sum32()%uint32(len(placeholders))]
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"20060102T150405Z",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseTime 尽力解析时间戳,失败返回 false,不会 panic
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// unix 秒
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 1e9 && n < 1e11 {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

// PublishedOrNow 解析失败时使用当前时间
func PublishedOrNow(s string, now time.Time) *time.Time {
	if t, ok := ParseTime(s); ok {
		return &t
	}
	return &now
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
