package analysis

import (
	"math"

	"github.com/sells-group/geo-cli/internal/llm"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/tables"
)

// Classification is the per-answer outcome of scoring.
type Classification struct {
	MentionsBrand        bool
	Sentiment            model.Sentiment
	CompetitorsMentioned []string
}

// Scorer classifies provider answers against the brand.
type Scorer struct {
	tables *tables.Tables
}

// NewScorer creates a Scorer using the sentiment word tables of tb.
func NewScorer(tb *tables.Tables) *Scorer {
	return &Scorer{tables: tb}
}

// Classify reports whether answer mentions brand, its sentiment toward the
// brand and which of the known competitor names it contains. Sentiment is
// neutral unless the brand is mentioned.
func (s *Scorer) Classify(answer, brand string, known []string) Classification {
	folded := fold(answer)
	c := Classification{
		MentionsBrand:        containsFold(answer, brand),
		Sentiment:            model.SentimentNeutral,
		CompetitorsMentioned: []string{},
	}

	if c.MentionsBrand {
		pos := countPresent(folded, s.tables.PositiveWords)
		neg := countPresent(folded, s.tables.NegativeWords)
		switch {
		case pos > neg:
			c.Sentiment = model.SentimentPositive
		case neg > pos:
			c.Sentiment = model.SentimentNegative
		}
	}

	for _, name := range known {
		if containsFold(answer, name) {
			c.CompetitorsMentioned = append(c.CompetitorsMentioned, name)
		}
	}
	return c
}

// countPresent counts the words of list present in folded text; each word
// counts once.
func countPresent(folded string, list []string) int {
	n := 0
	for _, w := range list {
		if containsFold(folded, w) {
			n++
		}
	}
	return n
}

// CalculateScore is 50 plus up to 30 points for the mention rate plus or
// minus up to 20 points for net sentiment, clamped to [0, 100]. No
// responses score 0.
func CalculateScore(responses []model.LLMResponse) int {
	n := len(responses)
	if n == 0 {
		return 0
	}
	var mentions, pos, neg int
	for _, r := range responses {
		if r.MentionsBrand {
			mentions++
		}
		switch r.Sentiment {
		case model.SentimentPositive:
			pos++
		case model.SentimentNegative:
			neg++
		}
	}

	score := 50
	score += roundHalfUp(float64(mentions) / float64(n) * 30)
	score += roundHalfUp(float64(pos-neg) / float64(n) * 20)
	return min(max(score, 0), 100)
}

// MentionRate is the share of responses that mention the brand, 0 for none.
func MentionRate(responses []model.LLMResponse) float64 {
	if len(responses) == 0 {
		return 0
	}
	mentions := 0
	for _, r := range responses {
		if r.MentionsBrand {
			mentions++
		}
	}
	return float64(mentions) / float64(len(responses))
}

// HasNegative reports whether any response is negative toward the brand.
func HasNegative(responses []model.LLMResponse) bool {
	for _, r := range responses {
		if r.Sentiment == model.SentimentNegative {
			return true
		}
	}
	return false
}

// ProviderScores returns one score per provider, in providers order,
// computed on that provider's responses only.
func ProviderScores(analysisID string, responses []model.LLMResponse, providers []model.ProviderID) []model.ProviderScore {
	byProvider := make(map[model.ProviderID][]model.LLMResponse, len(providers))
	for _, r := range responses {
		byProvider[r.Provider] = append(byProvider[r.Provider], r)
	}

	out := make([]model.ProviderScore, 0, len(providers))
	for _, id := range providers {
		subset := byProvider[id]
		mentions := 0
		for _, r := range subset {
			if r.MentionsBrand {
				mentions++
			}
		}
		info := llm.Lookup(id)
		out = append(out, model.ProviderScore{
			AnalysisID:  analysisID,
			Provider:    id,
			DisplayName: info.DisplayName,
			Score:       CalculateScore(subset),
			Mentions:    mentions,
			Color:       info.Color,
		})
	}
	return out
}

// roundHalfUp rounds halves toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
