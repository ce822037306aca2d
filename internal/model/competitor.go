package model

import "time"

// ValidatedRelevance is the relevance above which a competitor counts as
// validated and survives without any in-text mention.
const ValidatedRelevance = 70

// Competitor is a rival entity surfaced by the LLM responses.
type Competitor struct {
	ID             string       `json:"id"`
	AnalysisID     string       `json:"analysis_id"`
	Name           string       `json:"name"`
	Domain         string       `json:"domain,omitempty"`
	MentionCount   int          `json:"mention_count"`
	Providers      []ProviderID `json:"providers"`
	RelevanceScore int          `json:"relevance_score"`
	Reason         string       `json:"reason,omitempty"`
	IsValidated    bool         `json:"is_validated"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ProviderScore is the per-provider aggregate for one analysis.
type ProviderScore struct {
	AnalysisID  string     `json:"analysis_id"`
	Provider    ProviderID `json:"provider"`
	DisplayName string     `json:"display_name"`
	Score       int        `json:"score"`
	Mentions    int        `json:"mentions"`
	Color       string     `json:"color"`
}
