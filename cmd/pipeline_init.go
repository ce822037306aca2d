package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/analysis"
	"github.com/sells-group/geo-cli/internal/crawl"
	"github.com/sells-group/geo-cli/internal/llm"
	"github.com/sells-group/geo-cli/internal/lock"
	"github.com/sells-group/geo-cli/internal/pipeline"
	"github.com/sells-group/geo-cli/internal/queue"
	"github.com/sells-group/geo-cli/internal/scrape"
	"github.com/sells-group/geo-cli/internal/store"
	"github.com/sells-group/geo-cli/internal/tables"
	"github.com/sells-group/geo-cli/pkg/firecrawl"
	"github.com/sells-group/geo-cli/pkg/jina"
)

// pipelineEnv holds the store, clients and pipeline needed by the
// start/serve/worker commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Redis    *redis.Client // nil when the run lock is disabled
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Redis != nil {
		_ = pe.Redis.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline opens the store, builds every client and stage, and wires
// the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	p, rdb, err := buildPipeline(st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Pipeline = p
	env.Redis = rdb
	return env, nil
}

// buildPipeline wires the pipeline on top of an open store.
func buildPipeline(st store.Store) (*pipeline.Pipeline, *redis.Client, error) {
	tb, err := tables.Load(cfg.Pipeline.TablesPath)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load policy tables")
	}

	fanout, err := llm.FanOutFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	completer, err := llm.CompleterFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	crawler := buildCrawler(st)

	questions, err := analysis.NewQuestionGenerator(cfg.Pipeline.QuestionStrategy, completer, tb, cfg.Pipeline.MaxQuestions)
	if err != nil {
		return nil, nil, err
	}
	recs, err := analysis.NewRecommendationSynthesizer(cfg.Pipeline.RecommendationStrategy, completer)
	if err != nil {
		return nil, nil, err
	}
	stages := pipeline.Stages{
		Profiler:        analysis.NewProfiler(completer, cfg.Pipeline.ProfileCharBudget),
		Questions:       questions,
		Scorer:          analysis.NewScorer(tb),
		Competitors:     analysis.NewCompetitorExtractor(completer, tb, cfg.Pipeline.CompetitorSort, cfg.Pipeline.MaxCompetitors),
		Recommendations: recs,
	}

	var locker lock.Locker
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		locker = lock.NewRedis(rdb, "geo:run:")
		zap.L().Info("redis run lock enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		zap.L().Debug("GEO_REDIS_ADDR not set, run lock disabled")
	}

	zap.L().Info("pipeline ready",
		zap.Strings("providers", cfg.Providers.Enabled),
		zap.String("tables_version", tb.Version),
		zap.String("question_strategy", cfg.Pipeline.QuestionStrategy),
		zap.String("recommendation_strategy", cfg.Pipeline.RecommendationStrategy),
	)

	p := pipeline.New(st, crawler, fanout, stages, tb, locker, pipeline.Options{
		ScoringOrder: cfg.Pipeline.ScoringOrder,
		LockTTL:      time.Duration(cfg.Redis.LockTTLMin) * time.Minute,
	})
	return p, rdb, nil
}

// buildCrawler builds the page chain (local fetch, then Jina, then
// Firecrawl) and the site crawler with its optional Firecrawl fallback.
func buildCrawler(st store.Store) *crawl.SiteCrawler {
	matcher := scrape.NewPathMatcher(cfg.Crawl.ExcludePaths)
	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(time.Duration(cfg.Crawl.TimeoutSecs) * time.Second),
		scrape.NewJinaAdapter(jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))),
	}

	var fc firecrawl.Client
	if cfg.Firecrawl.Key != "" {
		fc = firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc))
	} else {
		zap.L().Debug("GEO_FIRECRAWL_KEY not set, firecrawl fallback disabled")
	}

	return crawl.New(st, scrape.NewChain(matcher, scrapers...), fc, crawl.Options{
		MaxDepth:       cfg.Crawl.MaxDepth,
		MaxConcurrency: cfg.Crawl.MaxConcurrency,
		CacheTTL:       time.Duration(cfg.Crawl.CacheTTLHours) * time.Hour,
	})
}

// initPublisher returns a queue publisher, or nil when no queue is
// configured.
func initPublisher(ctx context.Context) (*queue.Publisher, error) {
	if cfg.Queue.URL == "" {
		return nil, nil
	}
	client, err := queue.NewClient(ctx, cfg.Queue.Region)
	if err != nil {
		return nil, err
	}
	return queue.NewPublisher(client, cfg.Queue.URL), nil
}
