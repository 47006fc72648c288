// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Research ResearchConfig `yaml:"research" json:"research" jsonschema:"description=Search-LLM research configuration"`
	Scripts  ScriptsConfig  `yaml:"scripts" json:"scripts" jsonschema:"description=Script generation configuration"`
	Delivery DeliveryConfig `yaml:"delivery" json:"delivery" jsonschema:"description=Delivery backend configuration"`

	Feeds struct {
		URLs        []string      `yaml:"urls" json:"urls" jsonschema:"description=RSS feeds to monitor"`
		MaxAgeHours int           `yaml:"max_age_hours" json:"max_age_hours" jsonschema:"default=24,minimum=1,maximum=72,description=Only include news from the last N hours"`
		TopN        int           `yaml:"top_n" json:"top_n" jsonschema:"default=8,description=Curated list size per collection run"`
		Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Per-feed fetch timeout"`
		UserAgent   string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=trendbrief/1.0,description=User agent for feed requests"`
	} `yaml:"feeds" json:"feeds" jsonschema:"description=RSS aggregation configuration"`

	Limits struct {
		MonthlyBudget  float64 `yaml:"monthly_budget" json:"monthly_budget" jsonschema:"default=5.0,description=Monthly research spend ceiling in dollars"`
		ScriptsPerDay  int     `yaml:"scripts_per_day" json:"scripts_per_day" jsonschema:"default=3,minimum=1,maximum=10,description=Maximum generated scripts per day"`
		FetchesPerHour int     `yaml:"fetches_per_hour" json:"fetches_per_hour" jsonschema:"default=2,minimum=1,maximum=10,description=Maximum news fetch operations per hour"`
	} `yaml:"limits" json:"limits" jsonschema:"description=Rate and budget limits"`

	State struct {
		Dir string `yaml:"dir" json:"dir" jsonschema:"default=data,description=Directory for persisted JSON state files"`
	} `yaml:"state" json:"state" jsonschema:"description=Persisted state configuration"`
}

// ResearchConfig holds the search-augmented LLM settings
type ResearchConfig struct {
	Endpoint     string        `yaml:"endpoint" json:"endpoint" jsonschema:"required,description=OpenAI-compatible API endpoint with search capability"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model        string        `yaml:"model" json:"model" jsonschema:"required,description=Model name (e.g. sonar)"`
	Temperature  float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	CostPerToken float64       `yaml:"cost_per_token" json:"cost_per_token" jsonschema:"default=0.000001,description=Estimated dollar cost per token for budget tracking"`
	DeepDives    int           `yaml:"deep_dives" json:"deep_dives" jsonschema:"minimum=0,maximum=10,description=Deep-research the top N discoveries per briefing run (0 disables)"`
}

// ScriptsConfig holds script generation settings
type ScriptsConfig struct {
	Endpoint  string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint for script writing"`
	APIKey    string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model     string        `yaml:"model" json:"model" jsonschema:"description=Model name for script generation"`
	MaxTokens int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=1024,description=Maximum tokens per script"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
}

// DeliveryConfig selects and configures the destination backend
type DeliveryConfig struct {
	Method string `yaml:"method" json:"method" jsonschema:"default=notion,enum=notion,enum=discord,enum=sheets,description=Delivery method"`

	Notion struct {
		Token    string `yaml:"token" json:"token" jsonschema:"description=Notion integration token"`
		Database string `yaml:"database" json:"database" jsonschema:"description=Notion database ID"`
	} `yaml:"notion" json:"notion" jsonschema:"description=Document database delivery"`

	Discord struct {
		WebhookURL string `yaml:"webhook_url" json:"webhook_url" jsonschema:"description=Discord webhook URL"`
	} `yaml:"discord" json:"discord" jsonschema:"description=Chat webhook delivery"`

	Sheets struct {
		SpreadsheetID string `yaml:"spreadsheet_id" json:"spreadsheet_id" jsonschema:"description=Google Sheet ID from its URL"`
		Token         string `yaml:"token" json:"token" jsonschema:"description=OAuth bearer token with edit access"`
	} `yaml:"sheets" json:"sheets" jsonschema:"description=Spreadsheet delivery"`

	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Delivery request timeout"`
}

// defaultFeeds are monitored when the config lists none
var defaultFeeds = []string{
	"https://news.ycombinator.com/rss",
	"https://simonwillison.net/atom/everything/",
	"https://www.reddit.com/r/MachineLearning/.rss",
	"https://www.reddit.com/r/LocalLLaMA/.rss",
	"https://www.reddit.com/r/artificial/.rss",
	"https://techcrunch.com/category/artificial-intelligence/feed/",
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for research
	if cfg.Research.Temperature == 0 {
		cfg.Research.Temperature = 0.3
	}
	if cfg.Research.Timeout == 0 {
		cfg.Research.Timeout = 60 * time.Second
	}
	if cfg.Research.CostPerToken == 0 {
		cfg.Research.CostPerToken = 0.000001
	}

	// set defaults for scripts
	if cfg.Scripts.MaxTokens == 0 {
		cfg.Scripts.MaxTokens = 1024
	}
	if cfg.Scripts.Timeout == 0 {
		cfg.Scripts.Timeout = 60 * time.Second
	}

	// set defaults for delivery
	if cfg.Delivery.Method == "" {
		cfg.Delivery.Method = "notion"
	}
	if cfg.Delivery.Timeout == 0 {
		cfg.Delivery.Timeout = 30 * time.Second
	}

	// set defaults for feeds
	if len(cfg.Feeds.URLs) == 0 {
		cfg.Feeds.URLs = defaultFeeds
	}
	if cfg.Feeds.MaxAgeHours == 0 {
		cfg.Feeds.MaxAgeHours = 24
	}
	if cfg.Feeds.TopN == 0 {
		cfg.Feeds.TopN = 8
	}
	if cfg.Feeds.Timeout == 0 {
		cfg.Feeds.Timeout = 15 * time.Second
	}
	if cfg.Feeds.UserAgent == "" {
		cfg.Feeds.UserAgent = "trendbrief/1.0"
	}

	// set defaults for limits
	if cfg.Limits.MonthlyBudget == 0 {
		cfg.Limits.MonthlyBudget = 5.0
	}
	if cfg.Limits.ScriptsPerDay == 0 {
		cfg.Limits.ScriptsPerDay = 3
	}
	if cfg.Limits.FetchesPerHour == 0 {
		cfg.Limits.FetchesPerHour = 2
	}

	if cfg.State.Dir == "" {
		cfg.State.Dir = "data"
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Research.Endpoint == "" {
		return fmt.Errorf("research.endpoint is required")
	}
	if cfg.Research.Model == "" {
		return fmt.Errorf("research.model is required")
	}
	if cfg.Research.Temperature < 0 || cfg.Research.Temperature > 2 {
		return fmt.Errorf("research.temperature must be between 0 and 2")
	}
	if cfg.Research.DeepDives < 0 || cfg.Research.DeepDives > 10 {
		return fmt.Errorf("research.deep_dives must be between 0 and 10")
	}

	if cfg.Limits.MonthlyBudget <= 0 {
		return fmt.Errorf("limits.monthly_budget must be positive")
	}
	if cfg.Limits.ScriptsPerDay < 1 || cfg.Limits.ScriptsPerDay > 10 {
		return fmt.Errorf("limits.scripts_per_day must be between 1 and 10")
	}
	if cfg.Limits.FetchesPerHour < 1 || cfg.Limits.FetchesPerHour > 10 {
		return fmt.Errorf("limits.fetches_per_hour must be between 1 and 10")
	}

	// credentials for the selected backend must be set and real
	switch cfg.Delivery.Method {
	case "notion":
		if err := checkCredential("delivery.notion.token", cfg.Delivery.Notion.Token); err != nil {
			return err
		}
		if err := checkCredential("delivery.notion.database", cfg.Delivery.Notion.Database); err != nil {
			return err
		}
	case "discord":
		if err := checkCredential("delivery.discord.webhook_url", cfg.Delivery.Discord.WebhookURL); err != nil {
			return err
		}
	case "sheets":
		if err := checkCredential("delivery.sheets.spreadsheet_id", cfg.Delivery.Sheets.SpreadsheetID); err != nil {
			return err
		}
		if err := checkCredential("delivery.sheets.token", cfg.Delivery.Sheets.Token); err != nil {
			return err
		}
	default:
		return fmt.Errorf("delivery.method must be notion, discord or sheets, got %q", cfg.Delivery.Method)
	}

	if err := checkPlaceholder("research.api_key", cfg.Research.APIKey); err != nil {
		return err
	}
	if err := checkPlaceholder("scripts.api_key", cfg.Scripts.APIKey); err != nil {
		return err
	}

	return nil
}

// checkCredential requires a value that is set and not a template leftover
func checkCredential(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required for the selected delivery method", name)
	}
	return checkPlaceholder(name, value)
}

// checkPlaceholder rejects values copied straight out of an example config
func checkPlaceholder(name, value string) error {
	lower := strings.ToLower(value)
	if strings.Contains(lower, "xxxxx") || strings.Contains(lower, "your_") {
		return fmt.Errorf("%s appears to be a placeholder, set a real value", name)
	}
	return nil
}
