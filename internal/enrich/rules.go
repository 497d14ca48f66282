package enrich

import (
	"regexp"
	"strings"

	"ai-news/internal/model"
)

// Doc 分类时看到的文章视图,Text 已转小写
type Doc struct {
	Article *model.Article
	Text    string
}

// Rule 分类规则,按表中顺序取第一条命中的
type Rule struct {
	Tag   model.UpdateType
	Match func(d Doc) bool
}

// words 构造按词边界匹配任一关键词的谓词
func words(terms ...string) func(d Doc) bool {
	re := wordPattern(terms)
	return func(d Doc) bool {
		return re.MatchString(d.Text)
	}
}

func wordPattern(terms []string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(t))
	}
	return regexp.MustCompile(`(^|[^a-z0-9])(` + strings.Join(quoted, "|") + `)($|[^a-z0-9])`)
}

func anyOf(preds ...func(d Doc) bool) func(d Doc) bool {
	return func(d Doc) bool {
		for _, p := range preds {
			if p(d) {
				return true
			}
		}
		return false
	}
}

func fromOrigin(origins ...model.Origin) func(d Doc) bool {
	return func(d Doc) bool {
		for _, o := range origins {
			if d.Article.Origin == o {
				return true
			}
		}
		return false
	}
}

// DefaultRules 优先级:IGNORE > PRODUCT_UPDATE > MODEL_RELEASE > API_UPDATE > RESEARCH
var DefaultRules = []Rule{
	{
		Tag: model.UpdateIgnore,
		Match: words(
			"opinion", "op-ed", "editorial", "thought leadership", "my take", "hot take",
			"podcast", "webinar", "interview", "lessons learned", "predictions for",
			"sponsored", "hiring", "we're hiring",
		),
	},
	{
		Tag: model.UpdateProduct,
		Match: words(
			"launches", "launched", "launching", "ships", "shipped", "rolls out", "rolling out",
			"now available", "generally available", "introducing", "introduces", "new feature",
			"new features", "available today", "update to", "app update", "beta",
		),
	},
	{
		Tag: model.UpdateModel,
		Match: words(
			"model release", "releases", "released", "new model", "open weights", "open-weight",
			"weights", "checkpoint", "parameters", "fine-tuned", "foundation model",
			"language model", "multimodal model",
		),
	},
	{
		Tag: model.UpdateAPI,
		Match: words(
			"api", "apis", "sdk", "endpoint", "endpoints", "developer platform", "rate limits",
			"function calling", "tool use", "batch api", "assistants api",
		),
	},
	{
		Tag: model.UpdateResearch,
		Match: anyOf(
			fromOrigin(model.OriginArxiv),
			words(
				"paper", "arxiv", "preprint", "researchers", "study", "benchmark", "dataset",
				"we propose", "state-of-the-art", "peer-reviewed", "neurips", "icml", "iclr",
			),
		),
	},
}

// Classify 返回第一条命中规则的标签,都不命中时为 NEWS
func Classify(rules []Rule, a *model.Article) model.UpdateType {
	d := Doc{Article: a, Text: strings.ToLower(a.Text())}
	for _, r := range rules {
		if r.Match(d) {
			return r.Tag
		}
	}
	return model.UpdateNews
}
