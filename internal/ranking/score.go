// Package ranking 相关度打分、过滤、去重与排序
package ranking

import (
	"regexp"
	"strings"

	"ai-news/internal/model"
)

// Weights 打分权重与阈值,默认值来自线上调参
type Weights struct {
	Base           int
	HighValue      int
	MediumValue    int
	PremiumSource  int
	Research       int
	MissingContext int
	Innovation     int

	MinRelevance int
	MinAIFocus   int
}

func DefaultWeights() Weights {
	return Weights{
		Base:           10,
		HighValue:      20,
		MediumValue:    8,
		PremiumSource:  15,
		Research:       10,
		MissingContext: 10,
		Innovation:     15,
		MinRelevance:   25,
		MinAIFocus:     20,
	}
}

// Scores 三项得分,范围 0-100
type Scores struct {
	Relevance  int `json:"relevance"`
	AIFocus    int `json:"aiFocus"`
	Innovation int `json:"innovation"`
}

type vocabulary struct {
	terms []*regexp.Regexp
}

func newVocabulary(terms ...string) vocabulary {
	v := vocabulary{terms: make([]*regexp.Regexp, len(terms))}
	for i, t := range terms {
		v.terms[i] = regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(t) + `($|[^a-z0-9])`)
	}
	return v
}

// count 命中的不同词条数
func (v vocabulary) count(text string) int {
	n := 0
	for _, re := range v.terms {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

func (v vocabulary) any(text string) bool {
	for _, re := range v.terms {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var (
	highValue = newVocabulary(
		"openai", "anthropic", "deepmind", "google deepmind", "chatgpt", "gpt-4", "gpt-4o", "gpt-5",
		"claude", "gemini", "llama", "mistral", "deepseek", "hugging face", "nvidia",
		"large language model", "large language models", "llm", "llms", "generative ai", "genai",
		"foundation model", "frontier model", "reasoning model", "multimodal", "transformer", "agi",
		"breakthrough",
	)
	mediumValue = newVocabulary(
		"ai", "a.i.", "artificial intelligence", "machine learning", "deep learning", "neural network",
		"neural networks", "model", "models", "algorithm", "chatbot", "chatbots", "inference",
		"training", "dataset", "robotics", "computer vision", "nlp", "agent", "agents", "automation",
		"fine-tuning", "embedding", "embeddings",
	)
	consumer = newVocabulary(
		"black friday", "cyber monday", "prime day", "deal", "deals", "discount", "discounts",
		"coupon", "promo code", "on sale", "price drop", "gift guide", "gift ideas", "buying guide",
		"best buy", "unboxing", "hands-on review", "product review", "shopping", "bundle", "buy now",
	)
	industry = newVocabulary(
		"company", "companies", "startup", "startups", "enterprise", "industry", "business", "developers",
		"research", "launch", "release", "funding", "regulation", "policy", "partnership", "product",
		"platform", "market", "investment",
	)
	researchLanguage = newVocabulary(
		"paper", "study", "researchers", "arxiv", "preprint", "benchmark", "we propose", "peer-reviewed",
		"state-of-the-art", "findings",
	)
	innovation = newVocabulary(
		"breakthrough", "first", "novel", "new", "launch", "launches", "introduces", "unveils",
		"state-of-the-art", "record",
	)
	educational = newVocabulary(
		"tutorial", "how to", "how-to", "beginner's guide", "beginners guide", "step-by-step",
		"course", "cheat sheet", "explained", "for dummies", "101",
	)
	premiumSources = []string{
		"openai", "anthropic", "deepmind", "google ai", "google research", "meta ai",
		"microsoft research", "mit technology review", "arxiv", "hugging face", "nvidia",
	}

	pricePattern = regexp.MustCompile(`\$\d[\d,]*(?:\.\d+)?\s*([a-z]*)`)
	dealTitle    = regexp.MustCompile(`(?i)(\d+%\s*off|save \$\d+|\bdeals?\b|\bsale\b|\bcoupon\b)`)
)

// magnitudes 金额后跟这些词时视为融资或营收,不算价格
var magnitudes = map[string]bool{
	"billion": true, "million": true, "trillion": true, "bn": true, "b": true, "m": true, "mn": true,
}

func hasPrice(text string) bool {
	for _, m := range pricePattern.FindAllStringSubmatch(text, -1) {
		if !magnitudes[m[1]] {
			return true
		}
	}
	return false
}

// IsConsumer 购物、促销类内容,命中即否决
func IsConsumer(a *model.Article) bool {
	text := strings.ToLower(a.Text())
	return consumer.any(text) || hasPrice(text) || dealTitle.MatchString(a.Title)
}

// IsEducational 教程类内容
func IsEducational(a *model.Article) bool {
	return educational.any(strings.ToLower(a.Text()))
}

func isPremium(a *model.Article) bool {
	if a.Trust == model.TrustHigh {
		return true
	}
	name := strings.ToLower(a.Source.Name)
	for _, p := range premiumSources {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// Score 计算文章得分。命中消费类词表时相关度固定为 0
func (w Weights) Score(a *model.Article) Scores {
	text := strings.ToLower(a.Text())
	high := highValue.count(text)
	medium := mediumValue.count(text)

	aiFocus := clamp(high*w.HighValue + medium*w.MediumValue)
	innov := clamp(innovation.count(text) * w.Innovation)

	if IsConsumer(a) {
		return Scores{Relevance: 0, AIFocus: aiFocus, Innovation: innov}
	}

	rel := w.Base + high*w.HighValue + medium*w.MediumValue
	if isPremium(a) {
		rel += w.PremiumSource
	}
	if researchLanguage.any(text) {
		rel += w.Research
	}
	if medium < 2 && !industry.any(text) {
		rel -= w.MissingContext
	}
	return Scores{Relevance: clamp(rel), AIFocus: aiFocus, Innovation: innov}
}

// Passes 相关度和 AI 聚焦度都达到下限,且没有被否决
func (w Weights) Passes(s Scores) bool {
	return s.Relevance > 0 && s.Relevance >= w.MinRelevance && s.AIFocus >= w.MinAIFocus
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
