package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Scraping ScrapingConfig `mapstructure:"scraping"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Server   ServerConfig   `mapstructure:"server"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LLMConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	MaxRetries int    `mapstructure:"max_retries"`
}

type AnalysisConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	// RequireQuoteMatch drops extracted quotes that are not a
	// substring of the source review text. Off by default; quote
	// fidelity is prompt-enforced, not a hard invariant.
	RequireQuoteMatch bool `mapstructure:"require_quote_match"`
}

type ScrapingConfig struct {
	RequestTimeoutSeconds float64            `mapstructure:"request_timeout_seconds"`
	MaxRetries            int                `mapstructure:"max_retries"`
	Concurrency           int                `mapstructure:"concurrency"`
	DefaultMaxProducts    int                `mapstructure:"default_max_products"`
	DefaultMaxReviews     int                `mapstructure:"default_max_reviews"`
	Amazon                AmazonConfig       `mapstructure:"amazon"`
	Goodreads             StaticSourceConfig `mapstructure:"goodreads"`
	LibraryThing          StaticSourceConfig `mapstructure:"librarything"`
	Reddit                RedditConfig       `mapstructure:"reddit"`
}

type AmazonConfig struct {
	DelayMinSeconds        float64  `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds        float64  `mapstructure:"delay_max_seconds"`
	ProductDelayMinSeconds float64  `mapstructure:"product_delay_min_seconds"`
	ProductDelayMaxSeconds float64  `mapstructure:"product_delay_max_seconds"`
	UserAgents             []string `mapstructure:"user_agents"`
}

type StaticSourceConfig struct {
	DelayMinSeconds float64 `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds float64 `mapstructure:"delay_max_seconds"`
}

type RedditConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	UserAgent    string   `mapstructure:"user_agent"`
	Subreddits   []string `mapstructure:"subreddits"`
	PainKeywords []string `mapstructure:"pain_keywords"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("llm_model", cfg.LLM.Model),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "reviewminer")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/review_miner.db")

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("analysis.batch_size", 20)
	v.SetDefault("analysis.require_quote_match", false)

	v.SetDefault("scraping.request_timeout_seconds", 30.0)
	v.SetDefault("scraping.max_retries", 3)
	v.SetDefault("scraping.concurrency", 2)
	v.SetDefault("scraping.default_max_products", 10)
	v.SetDefault("scraping.default_max_reviews", 100)

	v.SetDefault("scraping.amazon.delay_min_seconds", 3.0)
	v.SetDefault("scraping.amazon.delay_max_seconds", 7.0)
	v.SetDefault("scraping.amazon.product_delay_min_seconds", 30.0)
	v.SetDefault("scraping.amazon.product_delay_max_seconds", 60.0)

	v.SetDefault("scraping.goodreads.delay_min_seconds", 2.0)
	v.SetDefault("scraping.goodreads.delay_max_seconds", 4.0)
	v.SetDefault("scraping.librarything.delay_min_seconds", 2.0)
	v.SetDefault("scraping.librarything.delay_max_seconds", 5.0)

	v.SetDefault("scraping.reddit.user_agent", "reviewminer/1.0")
	v.SetDefault("scraping.reddit.subreddits", []string{"books", "suggestmeabook"})
	v.SetDefault("scraping.reddit.pain_keywords", []string{"disappointed", "waste of time"})

	v.SetDefault("server.addr", ":8080")
}
