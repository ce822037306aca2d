// Package pipeline runs one visibility analysis end to end: crawl, profile,
// questions, multi-provider querying, scoring, competitors and
// recommendations, persisting progress after every step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/analysis"
	"github.com/sells-group/geo-cli/internal/crawl"
	"github.com/sells-group/geo-cli/internal/lock"
	"github.com/sells-group/geo-cli/internal/metrics"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/store"
	"github.com/sells-group/geo-cli/internal/tables"
)

// ErrNoPages is returned when the crawl yields no usable page.
var ErrNoPages = eris.New("pipeline: unable to crawl the website")

// FailedError is returned by Run once the analysis has been marked failed.
type FailedError struct {
	ID  string
	Err error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("pipeline: analysis %s failed: %v", e.ID, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// IsTerminal reports whether err leaves nothing to retry: the analysis is
// missing, already running or completed, or was marked failed.
func IsTerminal(err error) bool {
	var failed *FailedError
	return errors.As(err, &failed) ||
		eris.Is(err, store.ErrNotFound) ||
		eris.Is(err, store.ErrNotStartable)
}

// Scoring orders.
const (
	// ScoreThenExtract classifies and stores each answer as it arrives;
	// competitors_mentioned is therefore always empty.
	ScoreThenExtract = "score_then_extract"
	// ExtractThenScore buffers answers until competitors are known and
	// fills competitors_mentioned.
	ExtractThenScore = "extract_then_score"
)

// Querier sends one prompt to every configured provider. *llm.FanOut
// satisfies it.
type Querier interface {
	Providers() []model.ProviderID
	QueryAll(ctx context.Context, prompt string) map[model.ProviderID]string
}

// Stages bundles the analysis stages a Pipeline runs.
type Stages struct {
	Profiler        *analysis.Profiler
	Questions       analysis.QuestionGenerator
	Scorer          *analysis.Scorer
	Competitors     *analysis.CompetitorExtractor
	Recommendations analysis.RecommendationSynthesizer
}

// Options tunes a Pipeline.
type Options struct {
	ScoringOrder string
	// LockTTL bounds how long a run lock is held if the process dies.
	LockTTL time.Duration
}

// Pipeline orchestrates one analysis run.
type Pipeline struct {
	store   store.Store
	crawler crawl.Crawler
	querier Querier
	stages  Stages
	tables  *tables.Tables
	locker  lock.Locker
	opts    Options
}

// New creates a Pipeline. A nil locker disables the run lock.
func New(st store.Store, crawler crawl.Crawler, querier Querier, stages Stages, tb *tables.Tables, locker lock.Locker, opts Options) *Pipeline {
	if locker == nil {
		locker = lock.Nop{}
	}
	if opts.ScoringOrder != ExtractThenScore {
		opts.ScoringOrder = ScoreThenExtract
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &Pipeline{
		store:   st,
		crawler: crawler,
		querier: querier,
		stages:  stages,
		tables:  tb,
		locker:  locker,
		opts:    opts,
	}
}

// Run executes the analysis identified by id. A missing analysis returns
// store.ErrNotFound and one that is running or completed returns
// store.ErrNotStartable, both without any mutation. Any later error marks
// the analysis failed with the reason in current_step and is returned as a
// *FailedError.
func (p *Pipeline) Run(ctx context.Context, id string) (*model.RunResult, error) {
	log := zap.L().With(zap.String("analysis_id", id))

	a, err := p.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load analysis %s", id)
	}
	if !a.Status.IsStartable() {
		return nil, eris.Wrapf(store.ErrNotStartable, "pipeline: analysis %s is %s", id, a.Status)
	}

	release, err := p.locker.Acquire(ctx, id, p.opts.LockTTL)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: lock analysis %s", id)
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			log.Warn("pipeline: failed to release run lock", zap.Error(relErr))
		}
	}()

	tier, err := p.store.GetUserPlan(ctx, a.UserID)
	if err != nil {
		log.Warn("pipeline: plan lookup failed, using free limits", zap.Error(err))
		tier = model.PlanFree
	}
	limits := tier.Limits()

	a, err = p.store.StartAnalysis(ctx, id, model.ProgressUpdate{
		Status:      model.AnalysisStatusCrawling,
		Progress:    progressCrawling,
		CurrentStep: stepCrawling,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: start analysis %s", id)
	}

	log.Info("pipeline: starting analysis",
		zap.String("url", a.URL),
		zap.String("plan", string(limits.Tier)),
		zap.String("scoring_order", p.opts.ScoringOrder),
	)
	start := time.Now()
	tr := newTracker(p.store, id, progressCrawling)

	result, err := p.execute(ctx, a, limits, tr)
	if err != nil {
		p.fail(ctx, tr, err)
		metrics.Runs.WithLabelValues("failed").Inc()
		log.Error("pipeline: analysis failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, &FailedError{ID: id, Err: err}
	}

	metrics.Runs.WithLabelValues("completed").Inc()
	metrics.VisibilityScore.Observe(float64(result.Score))
	log.Info("pipeline: analysis complete",
		zap.Int("score", result.Score),
		zap.Int("pages", result.Pages),
		zap.Int("questions", result.Questions),
		zap.Int("competitors", result.Competitors),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, a *model.Analysis, limits model.PlanLimits, tr *tracker) (*model.RunResult, error) {
	log := zap.L().With(zap.String("analysis_id", a.ID))
	result := &model.RunResult{AnalysisID: a.ID}

	// ===== Crawl =====
	var pages []model.CrawledPage
	err := trackStage(log, "crawl", func() error {
		cr, err := p.crawler.Crawl(ctx, a.URL, limits.MaxPages)
		if err != nil {
			return eris.Wrap(err, "pipeline: crawl")
		}
		pages = cr.Pages
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	result.Pages = len(pages)

	if err := tr.update(ctx, model.ProgressUpdate{
		Status:       model.AnalysisStatusAnalyzing,
		Progress:     progressAnalyzing,
		CurrentStep:  stepAnalyzing,
		PagesCrawled: &result.Pages,
	}); err != nil {
		return nil, err
	}

	// ===== Profile =====
	var profile *model.WebsiteProfile
	brandHint := a.BrandName
	if brandHint == "" {
		brandHint = analysis.BrandFromURL(a.URL)
	}
	_ = trackStage(log, "profile", func() error {
		profile = p.stages.Profiler.Profile(ctx, pages, brandHint)
		if len(profile.Keywords) == 0 {
			profile.Keywords = analysis.ExtractKeywords(analysis.ProfileContent(pages, analysis.DefaultProfileBudget), p.tables)
		}
		return nil
	})
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if err := tr.update(ctx, model.ProgressUpdate{Progress: progressQuestions, CurrentStep: stepQuestions}); err != nil {
		return nil, err
	}

	// ===== Questions =====
	brand := analysis.ResolveBrand(a.BrandName, profile.CompanyName, profile.Fallback, a.URL)
	var questions []string
	_ = trackStage(log, "questions", func() error {
		questions = p.stages.Questions.Generate(ctx, analysis.QuestionInput{Brand: brand, Profile: profile, Pages: pages})
		return nil
	})
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	result.Questions = len(questions)
	if err := tr.update(ctx, model.ProgressUpdate{
		Progress:           progressQuerying,
		CurrentStep:        stepQuerying,
		QuestionsGenerated: &result.Questions,
	}); err != nil {
		return nil, err
	}

	// ===== Query =====
	providers := p.querier.Providers()
	joined := make(map[model.ProviderID]string, len(providers))
	var responses []model.LLMResponse
	err = trackStage(log, "query", func() error {
		for i, q := range questions {
			if err := checkCancelled(ctx); err != nil {
				return err
			}
			answers := p.querier.QueryAll(ctx, q)
			if err := checkCancelled(ctx); err != nil {
				return err
			}
			for _, pid := range providers {
				answer := answers[pid]
				joined[pid] += "\n" + answer
				r := model.LLMResponse{
					AnalysisID:           a.ID,
					Provider:             pid,
					Question:             q,
					Answer:               answer,
					Sentiment:            model.SentimentNeutral,
					CompetitorsMentioned: []string{},
					CreatedAt:            time.Now().UTC(),
				}
				if p.opts.ScoringOrder == ScoreThenExtract {
					p.classify(&r, brand, nil)
					if err := p.store.InsertResponse(ctx, &r); err != nil {
						return eris.Wrap(err, "pipeline: save response")
					}
				}
				responses = append(responses, r)
			}
			if err := tr.update(ctx, model.ProgressUpdate{
				Progress:    questionProgress(i, len(questions)),
				CurrentStep: fmt.Sprintf("Question %d/%d", i+1, len(questions)),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Responses = len(responses)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if err := tr.update(ctx, model.ProgressUpdate{
		Status:      model.AnalysisStatusScoring,
		Progress:    progressCompetitors,
		CurrentStep: stepCompetitors,
	}); err != nil {
		return nil, err
	}

	// ===== Competitors =====
	var competitors []model.Competitor
	err = trackStage(log, "competitors", func() error {
		competitors = p.stages.Competitors.Extract(ctx, analysis.CompetitorInput{
			Responses:      joined,
			Providers:      providers,
			Brand:          brand,
			Industry:       profile.Industry,
			WebsiteExcerpt: analysis.ProfileContent(pages, excerptBudget),
			Candidates:     profile.PotentialCompetitors,
		})
		if p.opts.ScoringOrder == ExtractThenScore {
			known := analysis.CompetitorNames(competitors)
			for i := range responses {
				p.classify(&responses[i], brand, known)
				if err := p.store.InsertResponse(ctx, &responses[i]); err != nil {
					return eris.Wrap(err, "pipeline: save response")
				}
			}
		}
		for i := range competitors {
			competitors[i].AnalysisID = a.ID
		}
		return eris.Wrap(p.store.InsertCompetitors(ctx, a.ID, competitors), "pipeline: save competitors")
	})
	if err != nil {
		return nil, err
	}
	result.Competitors = len(competitors)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if err := tr.update(ctx, model.ProgressUpdate{Progress: progressScoring, CurrentStep: stepScoring}); err != nil {
		return nil, err
	}

	// ===== Score =====
	result.Score = analysis.CalculateScore(responses)
	result.MentionRate = analysis.MentionRate(responses)
	scores := analysis.ProviderScores(a.ID, responses, providers)
	if err := p.store.InsertProviderScores(ctx, a.ID, scores); err != nil {
		return nil, eris.Wrap(err, "pipeline: save provider scores")
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if err := tr.update(ctx, model.ProgressUpdate{Progress: progressRecommendations, CurrentStep: stepRecommendations}); err != nil {
		return nil, err
	}

	// ===== Recommendations =====
	var recs []model.Recommendation
	err = trackStage(log, "recommendations", func() error {
		recs = p.stages.Recommendations.Synthesize(ctx, analysis.RecommendationInput{
			Score:           result.Score,
			MentionRate:     result.MentionRate,
			CompetitorCount: len(competitors),
			HasNegative:     analysis.HasNegative(responses),
			Profile:         profile,
			Pages:           pages,
			Max:             limits.MaxRecommendations,
		})
		for i := range recs {
			recs[i].AnalysisID = a.ID
		}
		return eris.Wrap(p.store.InsertRecommendations(ctx, a.ID, recs), "pipeline: save recommendations")
	})
	if err != nil {
		return nil, err
	}
	result.Recommendations = len(recs)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := tr.update(ctx, model.ProgressUpdate{
		Status:      model.AnalysisStatusCompleted,
		Progress:    progressDone,
		CurrentStep: stepDone,
		Score:       &result.Score,
		CompletedAt: &now,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) classify(r *model.LLMResponse, brand string, known []string) {
	c := p.stages.Scorer.Classify(r.Answer, brand, known)
	r.MentionsBrand = c.MentionsBrand
	r.Sentiment = c.Sentiment
	r.CompetitorsMentioned = c.CompetitorsMentioned
}

// fail records the failure with a context that survives cancellation of
// the run.
func (p *Pipeline) fail(ctx context.Context, tr *tracker, cause error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := tr.fail(fctx, failureMessage(cause)); err != nil {
		zap.L().Error("pipeline: failed to record failure", zap.String("analysis_id", tr.id), zap.Error(err))
	}
}

// trackStage times fn and records the stage duration.
func trackStage(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.StageDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		log.Warn("pipeline: stage failed", zap.String("stage", name), zap.Duration("duration", d), zap.Error(err))
		return err
	}
	log.Debug("pipeline: stage complete", zap.String("stage", name), zap.Duration("duration", d))
	return nil
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: cancelled")
	}
	return nil
}
