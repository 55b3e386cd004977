package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Serp        SerpConfig        `yaml:"serp" mapstructure:"serp"`
	Apify       ApifyConfig       `yaml:"apify" mapstructure:"apify"`
	RocketReach RocketReachConfig `yaml:"rocketreach" mapstructure:"rocketreach"`
	Classifier  ClassifierConfig  `yaml:"classifier" mapstructure:"classifier"`
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
	Scraper     ScraperConfig     `yaml:"scraper" mapstructure:"scraper"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
}

// SerpConfig holds settings for the search rendering service.
type SerpConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ApifyConfig holds Apify actor settings for profile scraping.
type ApifyConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	ActorID      string `yaml:"actor_id" mapstructure:"actor_id"`
	WaitSecs     int    `yaml:"wait_secs" mapstructure:"wait_secs"`
	BulkWaitSecs int    `yaml:"bulk_wait_secs" mapstructure:"bulk_wait_secs"`
	UseProxy     bool   `yaml:"use_proxy" mapstructure:"use_proxy"`
}

// RocketReachConfig configures the alternate-provider account pool.
type RocketReachConfig struct {
	AccountsFile    string `yaml:"accounts_file" mapstructure:"accounts_file"`
	HistoryFile     string `yaml:"history_file" mapstructure:"history_file"`
	CooldownSecs    int    `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	MaxCallsPerHour int    `yaml:"max_calls_per_hour" mapstructure:"max_calls_per_hour"`
	Strategy        string `yaml:"strategy" mapstructure:"strategy"`
}

// ClassifierConfig points at the personal domain and provider list files.
type ClassifierConfig struct {
	DomainsFile   string `yaml:"domains_file" mapstructure:"domains_file"`
	ProvidersFile string `yaml:"providers_file" mapstructure:"providers_file"`
}

// SearchConfig configures multi-domain search behavior.
type SearchConfig struct {
	Domains     []string `yaml:"domains" mapstructure:"domains"`
	MaxResults  int      `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScraperConfig configures cookie pools and the daily scrape limit.
type ScraperConfig struct {
	CookieDir  string `yaml:"cookie_dir" mapstructure:"cookie_dir"`
	UsageFile  string `yaml:"usage_file" mapstructure:"usage_file"`
	DailyLimit int    `yaml:"daily_limit" mapstructure:"daily_limit"`
}

// BatchConfig configures backlog processing.
type BatchConfig struct {
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	PollSize      int     `yaml:"poll_size" mapstructure:"poll_size"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration required for the given run mode
// is present. Modes: "lookup", "scrape", "serve", "batch".
func (c *Config) Validate(mode string) error {
	var missing []string

	checkLookup := func() {
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Serp.Key == "" {
			missing = append(missing, "serp.key is required")
		}
	}
	checkScrape := func() {
		if c.Apify.Key == "" {
			missing = append(missing, "apify.key is required")
		}
		if c.Scraper.DailyLimit < 1 {
			missing = append(missing, "scraper.daily_limit must be > 0")
		}
	}

	switch mode {
	case "lookup":
		checkLookup()
	case "scrape":
		checkScrape()
	case "serve":
		checkLookup()
		checkScrape()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "batch":
		checkLookup()
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
			missing = append(missing, "batch.max_concurrent must be between 1 and 50")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NBO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "nbo.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("serp.base_url", "https://serp.nbopipeline.dev")
	v.SetDefault("serp.timeout_secs", 30)
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.actor_id", "curious_coder~linkedin-profile-scraper")
	v.SetDefault("apify.wait_secs", 300)
	v.SetDefault("apify.bulk_wait_secs", 900)
	v.SetDefault("apify.use_proxy", true)
	v.SetDefault("rocketreach.accounts_file", "data/rocketreach_accounts.yaml")
	v.SetDefault("rocketreach.history_file", "data/rocketreach_history.json")
	v.SetDefault("rocketreach.cooldown_secs", 10)
	v.SetDefault("rocketreach.max_calls_per_hour", 70)
	v.SetDefault("rocketreach.strategy", "random")
	v.SetDefault("classifier.domains_file", "data/personal_domains.txt")
	v.SetDefault("classifier.providers_file", "data/personal_providers.txt")
	v.SetDefault("search.domains", []string{
		"google.com", "google.de", "google.com.eg", "google.com.au",
		"bing.com", "duckduckgo.com",
	})
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout_secs", 30)
	v.SetDefault("scraper.cookie_dir", "data")
	v.SetDefault("scraper.usage_file", "data/cookie_usage.json")
	v.SetDefault("scraper.daily_limit", 70)
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("batch.poll_size", 50)
	v.SetDefault("batch.rate_per_second", 1.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
