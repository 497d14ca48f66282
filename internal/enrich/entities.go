package enrich

import (
	"regexp"
	"strings"
)

// Entity 产品及其别名
type Entity struct {
	Name    string
	Aliases []string
}

var DefaultEntities = []Entity{
	{Name: "ChatGPT", Aliases: []string{"chatgpt", "chat gpt", "gpt-4o", "gpt-4", "gpt-4.1", "gpt-4.5", "gpt-5", "gpt-3.5", "openai o1", "openai o3"}},
	{Name: "Claude", Aliases: []string{"claude", "claude code", "claude.ai"}},
	{Name: "Gemini", Aliases: []string{"gemini", "bard", "gemma"}},
	{Name: "Llama", Aliases: []string{"llama", "llama 3", "llama 4", "meta ai"}},
	{Name: "Copilot", Aliases: []string{"copilot", "github copilot", "bing chat"}},
	{Name: "Mistral", Aliases: []string{"mistral", "mixtral", "le chat"}},
	{Name: "Grok", Aliases: []string{"grok", "xai"}},
	{Name: "DeepSeek", Aliases: []string{"deepseek"}},
	{Name: "Sora", Aliases: []string{"sora"}},
	{Name: "Midjourney", Aliases: []string{"midjourney"}},
	{Name: "Stable Diffusion", Aliases: []string{"stable diffusion", "sdxl", "stability ai"}},
	{Name: "Perplexity", Aliases: []string{"perplexity"}},
	{Name: "Cursor", Aliases: []string{"cursor ide", "cursor editor", "anysphere"}},
}

type entityMatcher struct {
	name string
	re   *regexp.Regexp
}

// Tagger 按别名表检测文章中提到的产品
type Tagger struct {
	matchers []entityMatcher
}

func NewTagger(entities []Entity) *Tagger {
	t := &Tagger{matchers: make([]entityMatcher, 0, len(entities))}
	for _, e := range entities {
		if len(e.Aliases) == 0 {
			continue
		}
		t.matchers = append(t.matchers, entityMatcher{name: e.Name, re: wordPattern(e.Aliases)})
	}
	return t
}

// Tag 返回命中的规范名称,按表中顺序,不重复
func (t *Tagger) Tag(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, m := range t.matchers {
		if m.re.MatchString(lower) {
			out = append(out, m.name)
		}
	}
	return out
}
