package model

import "time"

// ProviderID identifies one configured LLM backend.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderGoogle     ProviderID = "google"
	ProviderPerplexity ProviderID = "perplexity"
)

// Sentiment classifies how a response talks about the brand.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// LLMResponse is one (question x provider) answer and its classification.
type LLMResponse struct {
	ID                   string     `json:"id"`
	AnalysisID           string     `json:"analysis_id"`
	Provider             ProviderID `json:"provider"`
	Question             string     `json:"question"`
	Answer               string     `json:"answer"`
	MentionsBrand        bool       `json:"mentions_brand"`
	Sentiment            Sentiment  `json:"sentiment"`
	CompetitorsMentioned []string   `json:"competitors_mentioned"`
	CreatedAt            time.Time  `json:"created_at"`
}
