package ranking

import (
	"net/url"
	"strings"
	"time"

	"ai-news/internal/model"
)

// 内容分类
const (
	SectionAll            = "ALL"
	SectionToday          = "TODAY"
	SectionProductUpdates = "PRODUCT_UPDATES"
	SectionModelReleases  = "MODEL_RELEASES"
	SectionResearch       = "RESEARCH"
	SectionOtherPlatforms = "OTHER_PLATFORMS"
)

// 平台
const (
	PlatformAll      = "all"
	PlatformOfficial = "official"
	PlatformOther    = "other"
)

// Filter 单个过滤谓词,返回 true 表示保留
type Filter func(a *model.Article) bool

// Options 一次请求的过滤条件,零值表示不过滤
type Options struct {
	Query     string
	Section   string
	Source    string
	Sources   []string
	Topics    []string
	Time      string
	Locations []string
	Product   string
	Platform  string
	Now       time.Time
}

// Apply 依次应用过滤器,返回新切片
func Apply(articles []model.Article, filters ...Filter) []model.Article {
	out := make([]model.Article, 0, len(articles))
next:
	for i := range articles {
		for _, f := range filters {
			if !f(&articles[i]) {
				continue next
			}
		}
		out = append(out, articles[i])
	}
	return out
}

// RequestFilters 只按请求条件构造过滤器序列
func RequestFilters(o Options) []Filter {
	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}

	var filters []Filter
	if q := strings.TrimSpace(o.Query); q != "" {
		filters = append(filters, QueryFilter(q))
	}
	if f := SectionFilter(o.Section, now); f != nil {
		filters = append(filters, f)
	}
	if o.Source != "" {
		filters = append(filters, SourcesFilter([]string{o.Source}))
	}
	if len(o.Sources) > 0 {
		filters = append(filters, SourcesFilter(o.Sources))
	}
	if len(o.Topics) > 0 {
		filters = append(filters, TopicsFilter(o.Topics))
	}
	if window, ok := TimeWindow(o.Time); ok {
		filters = append(filters, SinceFilter(now.Add(-window), now))
	}
	if len(o.Locations) > 0 {
		filters = append(filters, LocationFilter(o.Locations))
	}
	if o.Product != "" {
		filters = append(filters, ProductFilter(o.Product))
	}
	if f := PlatformFilter(o.Platform); f != nil {
		filters = append(filters, f)
	}
	return filters
}

// ContentFilter 相关度打分与教程过滤,高可信来源跳过
func (w Weights) ContentFilter() Filter {
	return func(a *model.Article) bool {
		if a.Trust == model.TrustHigh {
			return true
		}
		return w.Passes(w.Score(a)) && !IsEducational(a)
	}
}

// QueryFilter 每个查询词都要出现在标题、摘要、来源或产品中
func QueryFilter(query string) Filter {
	terms := strings.Fields(strings.ToLower(query))
	return func(a *model.Article) bool {
		hay := strings.ToLower(a.Text() + " " + a.Source.Name + " " + strings.Join(a.Entities, " "))
		for _, t := range terms {
			if !strings.Contains(hay, t) {
				return false
			}
		}
		return true
	}
}

// SectionFilter ALL 或未知值返回 nil
func SectionFilter(section string, now time.Time) Filter {
	switch strings.ToUpper(strings.TrimSpace(section)) {
	case SectionToday:
		return SinceFilter(now.Add(-24*time.Hour), now)
	case SectionProductUpdates:
		return updateTypeFilter(model.UpdateProduct, model.UpdateAPI)
	case SectionModelReleases:
		return updateTypeFilter(model.UpdateModel)
	case SectionResearch:
		return updateTypeFilter(model.UpdateResearch)
	case SectionOtherPlatforms:
		return func(a *model.Article) bool {
			return a.Origin == model.OriginInstagram || a.Origin == model.OriginHackerNews
		}
	default:
		return nil
	}
}

func updateTypeFilter(types ...model.UpdateType) Filter {
	return func(a *model.Article) bool {
		for _, t := range types {
			if a.UpdateType == t {
				return true
			}
		}
		return false
	}
}

func SourcesFilter(names []string) Filter {
	return func(a *model.Article) bool {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), a.Source.Name) {
				return true
			}
		}
		return false
	}
}

// TopicsFilter 文章标签或正文命中任一主题
func TopicsFilter(topics []string) Filter {
	return func(a *model.Article) bool {
		text := strings.ToLower(a.Text())
		for _, t := range topics {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			for _, have := range a.Topics {
				if strings.EqualFold(have, t) {
					return true
				}
			}
			if strings.Contains(text, strings.ToLower(t)) {
				return true
			}
		}
		return false
	}
}

// TimeWindow 解析时间范围参数
func TimeWindow(s string) (time.Duration, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "last 24 hours":
		return 24 * time.Hour, true
	case "past week":
		return 7 * 24 * time.Hour, true
	case "past month":
		return 30 * 24 * time.Hour, true
	case "past year":
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// SinceFilter 发布时间在 [since, now] 内,缺失时间的文章被排除
func SinceFilter(since, now time.Time) Filter {
	return func(a *model.Article) bool {
		if a.PublishedAt == nil {
			return false
		}
		p := *a.PublishedAt
		return !p.Before(since) && !p.After(now)
	}
}

var countryTLDs = map[string]string{
	"united states": "us", "usa": "us", "us": "us",
	"united kingdom": "uk", "uk": "uk", "britain": "uk",
	"germany": "de", "france": "fr", "india": "in", "china": "cn", "japan": "jp",
	"canada": "ca", "australia": "au", "south korea": "kr", "korea": "kr",
	"singapore": "sg", "israel": "il", "netherlands": "nl", "spain": "es", "italy": "it",
	"brazil": "br", "switzerland": "ch", "sweden": "se", "ireland": "ie",
}

// LocationFilter 按国家名或域名后缀匹配,尽力而为
func LocationFilter(locations []string) Filter {
	type want struct{ name, tld string }
	wants := make([]want, 0, len(locations))
	for _, l := range locations {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		tld := countryTLDs[l]
		if tld == "" && len(l) == 2 {
			tld = l
		}
		wants = append(wants, want{name: l, tld: tld})
	}

	return func(a *model.Article) bool {
		if len(wants) == 0 {
			return true
		}
		loc := strings.ToLower(a.Location)
		host := ""
		if u, err := url.Parse(a.URL); err == nil {
			host = strings.ToLower(u.Hostname())
		}
		for _, w := range wants {
			if loc != "" && (loc == w.name || (w.tld != "" && countryTLDs[loc] == w.tld)) {
				return true
			}
			if w.tld != "" && strings.HasSuffix(host, "."+w.tld) {
				return true
			}
		}
		return false
	}
}

func ProductFilter(product string) Filter {
	lower := strings.ToLower(strings.TrimSpace(product))
	return func(a *model.Article) bool {
		return a.HasEntity(product) || strings.Contains(strings.ToLower(a.Text()), lower)
	}
}

// PlatformFilter official 为官方博客、研究机构和更新日志
func PlatformFilter(platform string) Filter {
	official := func(a *model.Article) bool {
		switch a.SourceType {
		case model.SourceOfficialBlog, model.SourceResearchLab, model.SourceChangelog:
			return true
		}
		return false
	}
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case PlatformOfficial:
		return official
	case PlatformOther:
		return func(a *model.Article) bool { return !official(a) }
	default:
		return nil
	}
}
