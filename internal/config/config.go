package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig configures the optional run lock. Empty Addr disables it.
type RedisConfig struct {
	Addr       string `yaml:"addr" mapstructure:"addr"`
	Password   string `yaml:"password" mapstructure:"password"`
	DB         int    `yaml:"db" mapstructure:"db"`
	LockTTLMin int    `yaml:"lock_ttl_min" mapstructure:"lock_ttl_min"`
}

// QueueConfig configures the SQS job trigger queue.
type QueueConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Region      string `yaml:"region" mapstructure:"region"`
	WaitSeconds int    `yaml:"wait_seconds" mapstructure:"wait_seconds"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings. QueryModel answers probe
// questions; AnalysisModel runs the generative pipeline sub-calls.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	QueryModel    string `yaml:"query_model" mapstructure:"query_model"`
	AnalysisModel string `yaml:"analysis_model" mapstructure:"analysis_model"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GoogleConfig holds Gemini API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CrawlConfig configures the crawl stage.
type CrawlConfig struct {
	MaxDepth       int      `yaml:"max_depth" mapstructure:"max_depth"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours  int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxConcurrency int      `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	ExcludePaths   []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// ProvidersConfig configures the multi-provider query fan-out.
type ProvidersConfig struct {
	Enabled      []string `yaml:"enabled" mapstructure:"enabled"`
	MaxTokens    int      `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec   float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries   int      `yaml:"max_retries" mapstructure:"max_retries"`
	BreakerTrips int      `yaml:"breaker_trips" mapstructure:"breaker_trips"`
}

// PipelineConfig selects strategies and bounds for the analysis stages.
type PipelineConfig struct {
	QuestionStrategy       string `yaml:"question_strategy" mapstructure:"question_strategy"`
	RecommendationStrategy string `yaml:"recommendation_strategy" mapstructure:"recommendation_strategy"`
	ScoringOrder           string `yaml:"scoring_order" mapstructure:"scoring_order"`
	CompetitorSort         string `yaml:"competitor_sort" mapstructure:"competitor_sort"`
	MaxQuestions           int    `yaml:"max_questions" mapstructure:"max_questions"`
	MaxCompetitors         int    `yaml:"max_competitors" mapstructure:"max_competitors"`
	ProfileCharBudget      int    `yaml:"profile_char_budget" mapstructure:"profile_char_budget"`
	TablesPath             string `yaml:"tables_path" mapstructure:"tables_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures the global zap logger. A non-empty File adds a
// rotated file sink next to stderr.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Load reads configuration from config.yaml (optional) and GEO_* env vars.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geo.db")
	v.SetDefault("redis.lock_ttl_min", 30)
	v.SetDefault("queue.wait_seconds", 20)
	v.SetDefault("queue.region", "us-east-1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("anthropic.query_model", "claude-3-haiku-20240307")
	v.SetDefault("anthropic.analysis_model", "claude-3-haiku-20240307")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("google.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("google.model", "gemini-1.5-flash")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.timeout_secs", 60)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.max_concurrency", 5)
	v.SetDefault("crawl.exclude_paths", []string{"/blog/*", "/news/*", "/press/*", "/careers/*"})
	v.SetDefault("providers.enabled", []string{"openai", "anthropic", "google", "perplexity"})
	v.SetDefault("providers.max_tokens", 1000)
	v.SetDefault("providers.timeout_secs", 60)
	v.SetDefault("providers.rate_per_sec", 2.0)
	v.SetDefault("providers.max_retries", 2)
	v.SetDefault("providers.breaker_trips", 5)
	v.SetDefault("pipeline.question_strategy", "generative")
	v.SetDefault("pipeline.recommendation_strategy", "generative")
	v.SetDefault("pipeline.scoring_order", "score_then_extract")
	v.SetDefault("pipeline.competitor_sort", "relevance")
	v.SetDefault("pipeline.max_questions", 12)
	v.SetDefault("pipeline.max_competitors", 10)
	v.SetDefault("pipeline.profile_char_budget", 8000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 5)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)

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

// Validate checks the keys required by a command mode: "pipeline" (start,
// serve), "worker" (pipeline plus queue) or "store" (migrate, create,
// status, plan). All problems are reported together.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres (GEO_STORE_DATABASE_URL)")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported store.driver %q", c.Store.Driver))
	}

	if mode != "store" {
		problems = append(problems, c.validatePipeline()...)
	}
	if mode == "worker" && c.Queue.URL == "" {
		problems = append(problems, "queue.url is required (GEO_QUEUE_URL)")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validatePipeline() []string {
	var problems []string

	oneOf := func(key, val string, allowed ...string) {
		for _, a := range allowed {
			if val == a {
				return
			}
		}
		problems = append(problems, fmt.Sprintf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), val))
	}
	oneOf("pipeline.question_strategy", c.Pipeline.QuestionStrategy, "heuristic", "generative")
	oneOf("pipeline.recommendation_strategy", c.Pipeline.RecommendationStrategy, "rules", "generative")
	oneOf("pipeline.scoring_order", c.Pipeline.ScoringOrder, "score_then_extract", "extract_then_score")
	oneOf("pipeline.competitor_sort", c.Pipeline.CompetitorSort, "relevance", "mentions")

	if c.Pipeline.MaxQuestions <= 0 {
		problems = append(problems, "pipeline.max_questions must be positive")
	}
	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required (GEO_ANTHROPIC_KEY)")
	}
	for _, p := range c.Providers.Enabled {
		switch p {
		case "openai", "anthropic", "google", "perplexity":
			if c.ProviderKey(p) == "" {
				problems = append(problems, fmt.Sprintf("%s.key is required when provider %q is enabled", p, p))
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown provider %q", p))
		}
	}
	return problems
}

// ProviderKey returns the API key configured for a provider id.
func (c *Config) ProviderKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAI.Key
	case "anthropic":
		return c.Anthropic.Key
	case "google":
		return c.Google.Key
	case "perplexity":
		return c.Perplexity.Key
	}
	return ""
}

// InitLogger configures the global zap logger.
func InitLogger(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}

	if cfg.File == "" {
		var zapCfg zap.Config
		if cfg.Format == "console" {
			zapCfg = zap.NewDevelopmentConfig()
		} else {
			zapCfg = zap.NewProductionConfig()
		}
		zapCfg.Level.SetLevel(level)

		logger, err := zapCfg.Build()
		if err != nil {
			return eris.Wrap(err, "config: build logger")
		}
		zap.ReplaceGlobals(logger)
		return nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(enc, zapcore.AddSync(rotator), level),
	)
	zap.ReplaceGlobals(zap.New(core, zap.AddCaller()))

	return nil
}
