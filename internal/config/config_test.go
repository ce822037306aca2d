package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "geo.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Crawl.MaxDepth)
	assert.Equal(t, 24, cfg.Crawl.CacheTTLHours)
	assert.Equal(t, []string{"openai", "anthropic", "google", "perplexity"}, cfg.Providers.Enabled)
	assert.Equal(t, 1000, cfg.Providers.MaxTokens)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.Anthropic.QueryModel)
	assert.Equal(t, "gemini-1.5-flash", cfg.Google.Model)
	assert.Equal(t, "sonar", cfg.Perplexity.Model)
	assert.Equal(t, "generative", cfg.Pipeline.QuestionStrategy)
	assert.Equal(t, "generative", cfg.Pipeline.RecommendationStrategy)
	assert.Equal(t, "score_then_extract", cfg.Pipeline.ScoringOrder)
	assert.Equal(t, "relevance", cfg.Pipeline.CompetitorSort)
	assert.Equal(t, 12, cfg.Pipeline.MaxQuestions)
	assert.Equal(t, 10, cfg.Pipeline.MaxCompetitors)
	assert.Equal(t, 8000, cfg.Pipeline.ProfileCharBudget)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "https://api.firecrawl.dev/v2", cfg.Firecrawl.BaseURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/geo
log:
  level: debug
  format: console
pipeline:
  question_strategy: heuristic
  max_questions: 10
providers:
  enabled: [openai, anthropic]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "heuristic", cfg.Pipeline.QuestionStrategy)
	assert.Equal(t, 10, cfg.Pipeline.MaxQuestions)
	assert.Equal(t, []string{"openai", "anthropic"}, cfg.Providers.Enabled)
	// Defaults still apply for unset values
	assert.Equal(t, "generative", cfg.Pipeline.RecommendationStrategy)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("GEO_STORE_DRIVER", "postgres")
	t.Setenv("GEO_LOG_LEVEL", "warn")
	t.Setenv("GEO_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo.log")
	err := InitLogger(LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)

	zap.L().Info("config: logger test")
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "config: logger test")
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validPipeline returns a Config that passes pipeline validation.
func validPipeline() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Anthropic.Key = "sk-ant"
	cfg.OpenAI.Key = "sk-openai"
	cfg.Providers.Enabled = []string{"openai", "anthropic"}
	cfg.Pipeline.QuestionStrategy = "generative"
	cfg.Pipeline.RecommendationStrategy = "rules"
	cfg.Pipeline.ScoringOrder = "score_then_extract"
	cfg.Pipeline.CompetitorSort = "relevance"
	cfg.Pipeline.MaxQuestions = 12
	return cfg
}

func TestValidatePipeline_AllPresent(t *testing.T) {
	assert.NoError(t, validPipeline().Validate("pipeline"))
}

func TestValidatePipeline_MissingFields(t *testing.T) {
	cfg := validPipeline()
	cfg.Anthropic.Key = ""
	cfg.Providers.Enabled = []string{"openai", "google", "bing"}
	cfg.Pipeline.ScoringOrder = "sideways"

	err := cfg.Validate("pipeline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "google.key is required")
	assert.Contains(t, err.Error(), `unknown provider "bing"`)
	assert.Contains(t, err.Error(), "pipeline.scoring_order")
}

func TestValidateStore_SkipsPipelineChecks(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateStore_PostgresNeedsURL(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateWorker_NeedsQueue(t *testing.T) {
	cfg := validPipeline()

	err := cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.url is required")

	cfg.Queue.URL = "https://sqs.us-east-1.amazonaws.com/123/geo"
	assert.NoError(t, cfg.Validate("worker"))
}

func TestProviderKey(t *testing.T) {
	cfg := &Config{}
	cfg.Google.Key = "g"
	cfg.Perplexity.Key = "p"
	assert.Equal(t, "g", cfg.ProviderKey("google"))
	assert.Equal(t, "p", cfg.ProviderKey("perplexity"))
	assert.Empty(t, cfg.ProviderKey("bing"))
}
