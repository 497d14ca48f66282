package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"ai-news/config"
	"ai-news/internal/adapter"
	"ai-news/internal/logger"
)

// Quote 单只股票报价
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent string    `json:"changePercent"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StocksResult 报价结果,Stale 表示上游限流时返回的旧数据
type StocksResult struct {
	Quotes    []Quote   `json:"quotes"`
	Stale     bool      `json:"stale"`
	Timestamp time.Time `json:"timestamp"`
}

type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	ErrorMsg    string            `json:"Error Message"`
}

// StocksService AI 相关公司的股票报价
type StocksService struct {
	client   *adapter.Client
	endpoint string
	apiKey   string
	symbols  []string
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStocksService(client *adapter.Client, cfg config.StocksConfig, ttl time.Duration) *StocksService {
	return &StocksService{
		client:   client,
		endpoint: cfg.APIURL,
		apiKey:   cfg.APIKey,
		symbols:  cfg.Symbols,
		ttl:      ttl,
		now:      time.Now,
		log:      logger.With("stocks"),
		quotes:   make(map[string]Quote),
	}
}

// Symbols 默认的股票代码
func (s *StocksService) Symbols() []string {
	return append([]string(nil), s.symbols...)
}

// Quotes 获取报价。缓存未过期的直接返回;上游限流时退回旧报价,
// 没有旧报价则返回 adapter.ErrRateLimited。
func (s *StocksService) Quotes(ctx context.Context, symbols []string) (*StocksResult, error) {
	if len(symbols) == 0 {
		symbols = s.symbols
	}
	if s.apiKey == "" {
		return s.fallback(symbols, adapter.ErrDisabled)
	}

	now := s.now()
	result := &StocksResult{Timestamp: now}
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if q, ok := s.cached(sym, now); ok {
			result.Quotes = append(result.Quotes, q)
			continue
		}

		q, err := s.fetch(ctx, sym)
		if err != nil {
			if errors.Is(err, adapter.ErrRateLimited) {
				s.log.Warn("stock quotes rate limited", "symbol", sym)
				return s.fallback(symbols, err)
			}
			s.log.Warn("stock quote failed", "symbol", sym, "err", err)
			continue
		}
		s.mu.Lock()
		s.quotes[sym] = q
		s.mu.Unlock()
		result.Quotes = append(result.Quotes, q)
	}
	return result, nil
}

func (s *StocksService) cached(sym string, now time.Time) (Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[sym]
	if !ok || now.Sub(q.UpdatedAt) >= s.ttl {
		return Quote{}, false
	}
	return q, true
}

// fallback 返回任何已有报价,全部缺失时返回 cause
func (s *StocksService) fallback(symbols []string, cause error) (*StocksResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &StocksResult{Stale: true, Timestamp: s.now()}
	for _, sym := range symbols {
		if q, ok := s.quotes[strings.ToUpper(strings.TrimSpace(sym))]; ok {
			result.Quotes = append(result.Quotes, q)
		}
	}
	if len(result.Quotes) == 0 {
		return nil, cause
	}
	return result, nil
}

func (s *StocksService) fetch(ctx context.Context, sym string) (Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", sym)
	params.Set("apikey", s.apiKey)

	var resp globalQuoteResponse
	if err := s.client.GetJSON(ctx, s.endpoint+"?"+params.Encode(), nil, &resp); err != nil {
		return Quote{}, err
	}
	// 限流时上游仍返回 200,只在 body 中带 Note 或 Information
	if resp.Note != "" || resp.Information != "" {
		return Quote{}, fmt.Errorf("%w: %s", adapter.ErrRateLimited, firstNonBlank(resp.Note, resp.Information))
	}
	if resp.ErrorMsg != "" {
		return Quote{}, fmt.Errorf("%w: %s", adapter.ErrParse, resp.ErrorMsg)
	}
	if len(resp.GlobalQuote) == 0 {
		return Quote{}, fmt.Errorf("%w: empty quote for %s", adapter.ErrParse, sym)
	}

	price, err := strconv.ParseFloat(resp.GlobalQuote["05. price"], 64)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: price %q", adapter.ErrParse, resp.GlobalQuote["05. price"])
	}
	change, _ := strconv.ParseFloat(resp.GlobalQuote["09. change"], 64)

	return Quote{
		Symbol:        sym,
		Price:         price,
		Change:        change,
		ChangePercent: resp.GlobalQuote["10. change percent"],
		UpdatedAt:     s.now(),
	}, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
