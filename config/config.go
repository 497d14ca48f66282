package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Cron     CronConfig     `yaml:"cron"`
	Cache    CacheConfig    `yaml:"cache"`
	Sources  SourcesConfig  `yaml:"sources"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Stocks   StocksConfig   `yaml:"stocks"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type CronConfig struct {
	FetchInterval    string `yaml:"fetch_interval"`    // 来源池刷新间隔
	CleanupInterval  string `yaml:"cleanup_interval"`  // 过期缓存清理间隔
	RotationInterval string `yaml:"rotation_interval"` // 搜索类来源分组轮换
	Secret           string `yaml:"secret"`
}

type CacheConfig struct {
	Version       string        `yaml:"version"`
	Duration      time.Duration `yaml:"duration"`        // 来源池过期时间
	ColdStartWait time.Duration `yaml:"cold_start_wait"` // 冷启动同步等待上限
	MemoryTTL     time.Duration `yaml:"memory_ttl"`
	PersistentTTL time.Duration `yaml:"persistent_ttl"`
	OpTimeout     time.Duration `yaml:"op_timeout"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"` // 单个适配器的超时
}

type FeedSource struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Origin string `yaml:"origin"`
}

type ScraperSource struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	MaxLinks int    `yaml:"max_links"`
}

type SourcesConfig struct {
	Feeds            []FeedSource    `yaml:"feeds"`
	Scrapers         []ScraperSource `yaml:"scrapers"`
	SearchGroups     [][]string      `yaml:"search_groups"`
	GNewsAPIKey      string          `yaml:"gnews_api_key"`
	TavilyAPIKey     string          `yaml:"tavily_api_key"`
	PerplexityAPIKey string          `yaml:"perplexity_api_key"`
	PerplexityModel  string          `yaml:"perplexity_model"`
	UserAgent        string          `yaml:"user_agent"`
}

type RankingConfig struct {
	MinRelevance int `yaml:"min_relevance"`
	MinAIFocus   int `yaml:"min_ai_focus"`
}

type StocksConfig struct {
	APIURL  string   `yaml:"api_url"`
	APIKey  string   `yaml:"api_key"`
	Symbols []string `yaml:"symbols"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "3000",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Path: "data/news.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Cron: CronConfig{
			FetchInterval:    "*/15 * * * *", // 每15分钟
			CleanupInterval:  "0 * * * *",    // 每小时
			RotationInterval: "5 * * * *",    // 每小时第5分钟
		},
		Cache: CacheConfig{
			Version:       "v7",
			Duration:      15 * time.Minute,
			ColdStartWait: 20 * time.Second,
			MemoryTTL:     5 * time.Minute,
			PersistentTTL: 30 * time.Minute,
			OpTimeout:     2 * time.Second,
			FetchTimeout:  15 * time.Second,
		},
		Sources: SourcesConfig{
			Feeds: []FeedSource{
				{Name: "OpenAI", URL: "https://openai.com/news/rss.xml"},
				{Name: "Google AI Blog", URL: "https://blog.google/technology/ai/rss/"},
				{Name: "Google DeepMind", URL: "https://deepmind.google/blog/rss.xml"},
				{Name: "Microsoft AI Blog", URL: "https://blogs.microsoft.com/ai/feed/"},
				{Name: "NVIDIA Blog", URL: "https://blogs.nvidia.com/feed/"},
				{Name: "Hugging Face", URL: "https://huggingface.co/blog/feed.xml"},
				{Name: "TechCrunch", URL: "https://techcrunch.com/category/artificial-intelligence/feed/"},
				{Name: "The Verge", URL: "https://www.theverge.com/rss/ai-artificial-intelligence/index.xml"},
				{Name: "VentureBeat", URL: "https://venturebeat.com/category/ai/feed/"},
				{Name: "MIT Technology Review", URL: "https://www.technologyreview.com/topic/artificial-intelligence/feed"},
				{Name: "arXiv cs.AI", URL: "https://export.arxiv.org/rss/cs.AI", Origin: "arxiv"},
				{Name: "arXiv cs.CL", URL: "https://export.arxiv.org/rss/cs.CL", Origin: "arxiv"},
			},
			Scrapers: []ScraperSource{
				{Name: "Anthropic", URL: "https://www.anthropic.com/news", MaxLinks: 12},
			},
			SearchGroups: [][]string{
				{"artificial intelligence", "large language model"},
				{"OpenAI", "Anthropic", "Google Gemini"},
				{"AI research", "machine learning breakthrough"},
				{"AI startup funding", "AI regulation"},
			},
			PerplexityModel: "sonar",
			UserAgent:       "ai-news/1.0 (+https://github.com/ai-news)",
		},
		Ranking: RankingConfig{
			MinRelevance: 25,
			MinAIFocus:   20,
		},
		Stocks: StocksConfig{
			APIURL:  "https://www.alphavantage.co/query",
			Symbols: []string{"NVDA", "MSFT", "GOOGL", "META", "AMZN"},
		},
	}
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// 如果配置文件存在,读取配置
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else {
		log.Printf("config file not found: %s, using defaults", configPath)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv 环境变量覆盖配置
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		c.Server.Mode = mode
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		c.Cron.Secret = secret
	}

	if key := os.Getenv("GNEWS_API_KEY"); key != "" {
		c.Sources.GNewsAPIKey = key
	}

	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		c.Sources.TavilyAPIKey = key
	}

	if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
		c.Sources.PerplexityAPIKey = key
	}

	if key := os.Getenv("STOCK_API_KEY"); key != "" {
		c.Stocks.APIKey = key
	}
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}

// IsProduction 是否为生产模式
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "release"
}
