package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Analysis struct {
		DefaultPortfolioSize float64       `yaml:"default_portfolio_size" default:"100000"`
		DefaultRiskTolerance string        `yaml:"default_risk_tolerance" default:"medium"`
		DefaultTimeHorizon   string        `yaml:"default_time_horizon" default:"MEDIUM_TERM"`
		MaxPositions         int           `yaml:"max_positions" default:"10"`
		MaxConcurrentAgents  int           `yaml:"max_concurrent_agents" default:"5"`
		AnalysisTimeout      time.Duration `yaml:"analysis_timeout" default:"30s"`
		NewsWindowHours      int           `yaml:"news_window_hours" default:"24"`
		MaxNewsItems         int           `yaml:"max_news_items" default:"20"`
		IncludeReports       bool          `yaml:"include_reports"`
		ReportTypes          []string      `yaml:"report_types" default:"[\"10-K\",\"10-Q\"]"`
		Universe             []string      `yaml:"universe"`
	} `yaml:"analysis"`
	Market struct {
		Provider          string        `yaml:"provider" default:"YAHOO"`
		HistoryDays       int           `yaml:"history_days" default:"120"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"2"`
		Timeout           time.Duration `yaml:"timeout" default:"15s"`
		Kite              struct {
			Exchange  string `yaml:"exchange" default:"NSE"`
			APIKeyEnv string `yaml:"api_key_env" default:"KITE_API_KEY"`
			TokenEnv  string `yaml:"access_token_env" default:"KITE_ACCESS_TOKEN"`
		} `yaml:"kite"`
	} `yaml:"market"`
	News struct {
		Enabled        bool          `yaml:"enabled" default:"true"`
		Sources        []string      `yaml:"sources" default:"[\"bloomberg\",\"reuters\",\"yahoo-finance\",\"marketwatch\",\"cnbc\"]"`
		MaxArticles    int           `yaml:"max_articles" default:"15"`
		CacheDuration  time.Duration `yaml:"cache_duration" default:"1h"`
		ScraperTimeout time.Duration `yaml:"scraper_timeout" default:"30s"`
		SymbolTimeout  time.Duration `yaml:"symbol_timeout" default:"20s"`
		Analyzer       string        `yaml:"analyzer" default:"KEYWORD"`
	} `yaml:"news"`
	Filings struct {
		Provider   string `yaml:"provider" default:"EDGAR"`
		MaxFilings int    `yaml:"max_filings" default:"2"`
		UserAgent  string `yaml:"user_agent" default:"tradegraph research contact@example.com"`
		Analyzer   string `yaml:"analyzer" default:"KEYWORD"`
	} `yaml:"filings"`
	LLM struct {
		Provider      string        `yaml:"provider" default:"NONE"`
		Model         string        `yaml:"model"`
		MaxTokens     int           `yaml:"max_tokens" default:"1024"`
		Temperature   float32       `yaml:"temperature" default:"0.1"`
		System        string        `yaml:"system"`
		Timeout       time.Duration `yaml:"timeout" default:"30s"`
		EnrichFactors bool          `yaml:"enrich_factors"`
	} `yaml:"llm"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:":9090"`
	} `yaml:"metrics"`
	RunLog struct {
		Dir           string `yaml:"dir" default:"logs"`
		RetentionDays int    `yaml:"retention_days" default:"30"`
	} `yaml:"runlog"`
	Schedule struct {
		Cron string `yaml:"cron" default:"30 16 * * 1-5"`
	} `yaml:"schedule"`
}

func (c *Config) Validate() error {
	switch c.Analysis.DefaultRiskTolerance {
	case "conservative", "medium", "aggressive":
	default:
		return fmt.Errorf("invalid analysis.default_risk_tolerance '%s': must be conservative, medium or aggressive", c.Analysis.DefaultRiskTolerance)
	}
	if c.Analysis.DefaultPortfolioSize <= 0 {
		return fmt.Errorf("analysis.default_portfolio_size must be positive, got %.2f", c.Analysis.DefaultPortfolioSize)
	}
	if c.Analysis.MaxPositions < 1 {
		return fmt.Errorf("analysis.max_positions must be at least 1, got %d", c.Analysis.MaxPositions)
	}
	if c.Analysis.MaxConcurrentAgents < 1 || c.Analysis.MaxConcurrentAgents > 10 {
		return fmt.Errorf("analysis.max_concurrent_agents must be between 1-10, got %d", c.Analysis.MaxConcurrentAgents)
	}
	if c.Analysis.AnalysisTimeout <= 0 {
		return errors.New("analysis.analysis_timeout must be positive")
	}
	if c.Market.Provider != "YAHOO" && c.Market.Provider != "KITE" && c.Market.Provider != "MOCK" {
		return fmt.Errorf("invalid market.provider '%s': must be 'YAHOO', 'KITE' or 'MOCK'", c.Market.Provider)
	}
	if c.Market.RequestsPerSecond <= 0 {
		return fmt.Errorf("market.requests_per_second must be positive, got %.2f", c.Market.RequestsPerSecond)
	}
	if c.News.Analyzer != "KEYWORD" && c.News.Analyzer != "LLM" {
		return fmt.Errorf("invalid news.analyzer '%s': must be 'KEYWORD' or 'LLM'", c.News.Analyzer)
	}
	if c.Filings.Provider != "EDGAR" && c.Filings.Provider != "MOCK" {
		return fmt.Errorf("invalid filings.provider '%s': must be 'EDGAR' or 'MOCK'", c.Filings.Provider)
	}
	if c.Filings.Analyzer != "KEYWORD" && c.Filings.Analyzer != "LLM" {
		return fmt.Errorf("invalid filings.analyzer '%s': must be 'KEYWORD' or 'LLM'", c.Filings.Analyzer)
	}
	switch c.LLM.Provider {
	case "NONE", "CLAUDE", "OPENAI", "GEMINI":
	default:
		return fmt.Errorf("invalid llm.provider '%s': must be 'NONE', 'CLAUDE', 'OPENAI' or 'GEMINI'", c.LLM.Provider)
	}
	return nil
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// Static tags; failing here is a programming error.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML over the defaults, applies env overrides and
// validates the result.
func ParseConfig(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	c.applyEnv()
	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return c, nil
}

// applyEnv lets deployment override the provider choices without editing YAML.
func (c *Config) applyEnv() {
	if v := os.Getenv("TRADEGRAPH_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("TRADEGRAPH_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("TRADEGRAPH_MARKET_PROVIDER"); v != "" {
		c.Market.Provider = v
	}
	if v := os.Getenv("TRADEGRAPH_FILINGS_PROVIDER"); v != "" {
		c.Filings.Provider = v
	}
	if v := os.Getenv("TRADEGRAPH_MAX_CONCURRENT_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.MaxConcurrentAgents = n
		}
	}
}

func (c *Config) normalize() {
	c.Analysis.DefaultRiskTolerance = strings.ToLower(strings.TrimSpace(c.Analysis.DefaultRiskTolerance))
	c.Analysis.DefaultTimeHorizon = strings.ToUpper(strings.TrimSpace(c.Analysis.DefaultTimeHorizon))
	c.Market.Provider = strings.ToUpper(c.Market.Provider)
	c.News.Analyzer = strings.ToUpper(c.News.Analyzer)
	c.Filings.Provider = strings.ToUpper(c.Filings.Provider)
	c.Filings.Analyzer = strings.ToUpper(c.Filings.Analyzer)
	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	if c.LLM.Provider == "" {
		c.LLM.Provider = "NONE"
	}
}
