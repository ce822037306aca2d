package model

import "time"

// AnalysisStatus represents the current state of a visibility analysis.
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusCrawling  AnalysisStatus = "crawling"
	AnalysisStatusAnalyzing AnalysisStatus = "analyzing"
	AnalysisStatusScoring   AnalysisStatus = "scoring"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// IsTerminal reports whether no further mutation is permitted.
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisStatusCompleted || s == AnalysisStatusFailed
}

// IsStartable reports whether a run may begin from this status.
func (s AnalysisStatus) IsStartable() bool {
	return s == AnalysisStatusPending || s == AnalysisStatusFailed
}

// Analysis is one crawl-to-score run for a single site.
type Analysis struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id,omitempty"`
	URL                string         `json:"url"`
	BrandName          string         `json:"brand_name,omitempty"`
	Status             AnalysisStatus `json:"status"`
	Progress           int            `json:"progress"`
	CurrentStep        string         `json:"current_step"`
	PagesCrawled       int            `json:"pages_crawled"`
	QuestionsGenerated int            `json:"questions_generated"`
	Score              *int           `json:"score,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ProgressUpdate is written atomically as a single update. Nil pointer
// fields leave the stored value unchanged.
type ProgressUpdate struct {
	Status             AnalysisStatus `json:"status"`
	Progress           int            `json:"progress"`
	CurrentStep        string         `json:"current_step"`
	PagesCrawled       *int           `json:"pages_crawled,omitempty"`
	QuestionsGenerated *int           `json:"questions_generated,omitempty"`
	Score              *int           `json:"score,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
}

// RunResult is returned to the caller that triggered a run.
type RunResult struct {
	AnalysisID      string  `json:"analysis_id"`
	Score           int     `json:"score"`
	MentionRate     float64 `json:"mention_rate"`
	Pages           int     `json:"pages"`
	Questions       int     `json:"questions"`
	Responses       int     `json:"responses"`
	Competitors     int     `json:"competitors"`
	Recommendations int     `json:"recommendations"`
}

// AnalysisReport bundles an analysis with all of its child records.
type AnalysisReport struct {
	Analysis        *Analysis        `json:"analysis"`
	ProviderScores  []ProviderScore  `json:"provider_scores"`
	Competitors     []Competitor     `json:"competitors"`
	Recommendations []Recommendation `json:"recommendations"`
	Responses       []LLMResponse    `json:"responses,omitempty"`
}
