package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-cli/internal/model"
)

var (
	// ErrNotFound is returned when an analysis does not exist.
	ErrNotFound = eris.New("store: analysis not found")
	// ErrNotStartable is returned by StartAnalysis when the analysis is
	// neither pending nor failed.
	ErrNotStartable = eris.New("store: analysis is not startable")
	// ErrNotUpdatable is returned by UpdateProgress when the analysis is
	// missing or already terminal.
	ErrNotUpdatable = eris.New("store: analysis is not updatable")
)

// NewAnalysis holds the caller-supplied fields of a new analysis.
type NewAnalysis struct {
	UserID    string `json:"user_id,omitempty"`
	URL       string `json:"url"`
	BrandName string `json:"brand_name,omitempty"`
}

// AnalysisFilter specifies criteria for listing analyses.
type AnalysisFilter struct {
	Status model.AnalysisStatus `json:"status,omitempty"`
	UserID string               `json:"user_id,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for visibility analyses.
type Store interface {
	// Analyses
	CreateAnalysis(ctx context.Context, in NewAnalysis) (*model.Analysis, error)
	GetAnalysis(ctx context.Context, id string) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error)
	// StartAnalysis atomically moves a pending or failed analysis into the
	// first running state. Child records of an earlier failed attempt are
	// removed in the same transaction.
	StartAnalysis(ctx context.Context, id string, update model.ProgressUpdate) (*model.Analysis, error)
	// UpdateProgress writes one progress update. Progress never decreases
	// and terminal analyses are never modified.
	UpdateProgress(ctx context.Context, id string, update model.ProgressUpdate) error

	// Child records
	InsertResponse(ctx context.Context, r *model.LLMResponse) error
	InsertCompetitors(ctx context.Context, analysisID string, competitors []model.Competitor) error
	InsertProviderScores(ctx context.Context, analysisID string, scores []model.ProviderScore) error
	InsertRecommendations(ctx context.Context, analysisID string, recs []model.Recommendation) error
	ListResponses(ctx context.Context, analysisID string) ([]model.LLMResponse, error)
	ListCompetitors(ctx context.Context, analysisID string) ([]model.Competitor, error)
	ListProviderScores(ctx context.Context, analysisID string) ([]model.ProviderScore, error)
	ListRecommendations(ctx context.Context, analysisID string) ([]model.Recommendation, error)

	// Plans
	GetUserPlan(ctx context.Context, userID string) (model.PlanTier, error)
	SetUserPlan(ctx context.Context, userID string, tier model.PlanTier) error

	// Crawl cache
	GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error)
	SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, maxPages int, ttl time.Duration) error
	DeleteExpiredCrawls(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Report loads an analysis together with all of its child records.
func Report(ctx context.Context, s Store, id string, withResponses bool) (*model.AnalysisReport, error) {
	a, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	rep := &model.AnalysisReport{Analysis: a}
	if rep.ProviderScores, err = s.ListProviderScores(ctx, id); err != nil {
		return nil, err
	}
	if rep.Competitors, err = s.ListCompetitors(ctx, id); err != nil {
		return nil, err
	}
	if rep.Recommendations, err = s.ListRecommendations(ctx, id); err != nil {
		return nil, err
	}
	if withResponses {
		if rep.Responses, err = s.ListResponses(ctx, id); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func providerStrings(ps []model.ProviderID) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

func providerIDs(ss []string) []model.ProviderID {
	out := make([]model.ProviderID, len(ss))
	for i, s := range ss {
		out[i] = model.ProviderID(s)
	}
	return out
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
