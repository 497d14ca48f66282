package enrich

import (
	"net/url"
	"strings"

	"ai-news/internal/model"
)

// RegistryEntry 已知出版方
type RegistryEntry struct {
	Names []string
	Hosts []string
	Info  model.SourceInfo
}

// Registry 来源注册表,按 URL 域名或来源名称查找
type Registry struct {
	entries []RegistryEntry
}

func NewRegistry(entries ...RegistryEntry) *Registry {
	return &Registry{entries: entries}
}

func DefaultRegistry() *Registry {
	official := func(company string, hosts []string, names ...string) RegistryEntry {
		return RegistryEntry{Names: names, Hosts: hosts, Info: model.SourceInfo{Company: company, Trust: model.TrustHigh, SourceType: model.SourceOfficialBlog}}
	}
	lab := func(company string, hosts []string, names ...string) RegistryEntry {
		return RegistryEntry{Names: names, Hosts: hosts, Info: model.SourceInfo{Company: company, Trust: model.TrustHigh, SourceType: model.SourceResearchLab}}
	}
	press := func(company string, hosts []string, names ...string) RegistryEntry {
		return RegistryEntry{Names: names, Hosts: hosts, Info: model.SourceInfo{Company: company, Trust: model.TrustMedium, SourceType: model.SourceTechNews}}
	}

	return NewRegistry(
		official("OpenAI", []string{"openai.com"}, "OpenAI", "OpenAI Blog", "OpenAI News"),
		official("Anthropic", []string{"anthropic.com"}, "Anthropic", "Anthropic News"),
		official("Microsoft", []string{"blogs.microsoft.com", "microsoft.com"}, "Microsoft", "Microsoft AI Blog"),
		official("Hugging Face", []string{"huggingface.co"}, "Hugging Face", "Hugging Face Blog"),
		official("NVIDIA", []string{"blogs.nvidia.com", "developer.nvidia.com"}, "NVIDIA", "NVIDIA Blog"),
		lab("Google", []string{"deepmind.google", "deepmind.com", "blog.google", "research.google", "ai.googleblog.com"}, "Google DeepMind", "DeepMind", "Google AI", "Google Research"),
		lab("Meta", []string{"ai.meta.com"}, "Meta AI"),
		lab("arXiv", []string{"arxiv.org"}, "arXiv", "arXiv cs.AI", "arXiv cs.CL", "arXiv cs.LG"),
		RegistryEntry{
			Names: []string{"GitHub Changelog", "GitHub Blog"},
			Hosts: []string{"github.blog"},
			Info:  model.SourceInfo{Company: "GitHub", Trust: model.TrustHigh, SourceType: model.SourceChangelog},
		},
		press("TechCrunch", []string{"techcrunch.com"}, "TechCrunch"),
		press("The Verge", []string{"theverge.com"}, "The Verge"),
		press("VentureBeat", []string{"venturebeat.com"}, "VentureBeat"),
		press("Wired", []string{"wired.com"}, "Wired"),
		press("Ars Technica", []string{"arstechnica.com"}, "Ars Technica"),
		press("MIT Technology Review", []string{"technologyreview.com"}, "MIT Technology Review"),
		RegistryEntry{
			Names: []string{"Hacker News"},
			Hosts: []string{"news.ycombinator.com"},
			Info:  model.SourceInfo{Company: "Y Combinator", Trust: model.TrustLow, SourceType: model.SourceAggregator},
		},
	)
}

// Lookup 先按 URL 域名,再按来源名称匹配
func (r *Registry) Lookup(name, rawURL string) (model.SourceInfo, bool) {
	if host := hostOf(rawURL); host != "" {
		for _, e := range r.entries {
			for _, h := range e.Hosts {
				if host == h || strings.HasSuffix(host, "."+h) {
					return e.Info, true
				}
			}
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return model.SourceInfo{}, false
	}
	for _, e := range r.entries {
		for _, n := range e.Names {
			if strings.EqualFold(name, n) {
				return e.Info, true
			}
		}
	}
	return model.SourceInfo{}, false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// fallbackInfo 未登记来源:低可信,聚合类来源标为 AGGREGATOR
func fallbackInfo(origin model.Origin) model.SourceInfo {
	switch origin {
	case model.OriginGDELT, model.OriginHackerNews, model.OriginGNews, model.OriginTavily, model.OriginPerplexity:
		return model.SourceInfo{Trust: model.TrustLow, SourceType: model.SourceAggregator}
	default:
		return model.SourceInfo{Trust: model.TrustLow, SourceType: model.SourceTechNews}
	}
}
