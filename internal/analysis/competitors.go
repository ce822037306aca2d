package analysis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/llm"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/tables"
)

// Competitor sort modes.
const (
	SortByRelevance = "relevance"
	SortByMentions  = "mentions"
)

const (
	// DefaultMaxCompetitors bounds the extracted competitor list.
	DefaultMaxCompetitors = 10
	defaultRelevance      = 50
	maxExcerptRunes       = 1000
	maxResponsesRunes     = 5000
)

// CompetitorInput is what the extractor works from.
type CompetitorInput struct {
	// Responses maps each provider to all of its answers concatenated.
	Responses map[model.ProviderID]string
	// Providers fixes the order of Responses and of each competitor's
	// provider list.
	Providers      []model.ProviderID
	Brand          string
	Industry       string
	WebsiteExcerpt string
	Candidates     []string
}

// CandidateCompetitor is one entry of the generative answer.
type CandidateCompetitor struct {
	Name           string `json:"name"`
	Domain         string `json:"domain,omitempty"`
	Reason         string `json:"reason"`
	RelevanceScore *int   `json:"relevanceScore"`
}

// CompetitorExtractor names the brand's real competitors from the provider
// answers.
type CompetitorExtractor struct {
	completer llm.Completer
	tables    *tables.Tables
	sortMode  string
	max       int
}

// NewCompetitorExtractor creates an extractor. Unknown sort modes sort by
// relevance; maxCompetitors <= 0 uses DefaultMaxCompetitors.
func NewCompetitorExtractor(completer llm.Completer, tb *tables.Tables, sortMode string, maxCompetitors int) *CompetitorExtractor {
	if maxCompetitors <= 0 {
		maxCompetitors = DefaultMaxCompetitors
	}
	if sortMode != SortByMentions {
		sortMode = SortByRelevance
	}
	return &CompetitorExtractor{completer: completer, tables: tb, sortMode: sortMode, max: maxCompetitors}
}

const competitorsSystem = "You are an expert in competitive analysis."

const competitorsPrompt = `Analyze these AI answers and identify the REAL direct competitors.

CONTEXT:
- Company analyzed: %s
- Industry: %s
- Website content: %s
- Potential competitors mentioned on the site: %s

IMPORTANT RULES:
1. List ONLY companies offering SIMILAR and COMPARABLE services.
2. EXCLUDE large multinationals (Google, Microsoft, Salesforce, HubSpot, etc.).
3. EXCLUDE generic SaaS tools (Mailchimp, Hootsuite, SEMrush, etc.).
4. EXCLUDE giant consulting firms (McKinsey, Accenture, Deloitte, etc.).
5. EXCLUDE advertising holding companies (WPP, Omnicom, Publicis, etc.).
6. Look for agencies or companies of SIMILAR SIZE.
7. At most %d relevant competitors.

AI ANSWERS:
%s

Return a JSON array in exactly this format:
[
  {
    "name": "Company name",
    "domain": "example.com",
    "reason": "Why it is a direct competitor (1 sentence)",
    "relevanceScore": 85
  }
]

If no relevant competitor is found, return: []
Return ONLY the JSON, nothing else.`

// Extract returns the filtered, deduplicated and sorted competitors. Any
// failure yields an empty list.
func (e *CompetitorExtractor) Extract(ctx context.Context, in CompetitorInput) []model.Competitor {
	log := zap.L().With(zap.String("stage", "competitors"))

	brand := in.Brand
	if brand == "" {
		brand = "Not specified"
	}
	prompt := fmt.Sprintf(competitorsPrompt,
		brand, in.Industry,
		truncateRunes(in.WebsiteExcerpt, maxExcerptRunes),
		strings.Join(in.Candidates, ", "),
		e.max,
		truncateRunes(joinResponses(in), maxResponsesRunes),
	)

	raw, err := e.completer.Complete(ctx, competitorsSystem, prompt, 2048)
	if err != nil {
		log.Warn("analysis: competitor call failed", zap.Error(err))
		return []model.Competitor{}
	}
	candidates, ok := ParseOrDefault[[]CandidateCompetitor](raw, nil, nil)
	if !ok {
		log.Warn("analysis: competitor answer unusable", zap.Int("answer_len", len(raw)))
		return []model.Competitor{}
	}

	out := e.Finalize(candidates, in)
	log.Info("analysis: competitors extracted", zap.Int("candidates", len(candidates)), zap.Int("kept", len(out)))
	return out
}

// Finalize applies the brand and denylist filters, recounts mentions per
// provider, merges case-insensitive duplicates and sorts and truncates the
// result. The first occurrence of a name keeps its metadata; each duplicate
// adds its recount to the mention count.
func (e *CompetitorExtractor) Finalize(candidates []CandidateCompetitor, in CompetitorInput) []model.Competitor {
	providers := in.Providers
	if len(providers) == 0 {
		for id := range in.Responses {
			providers = append(providers, id)
		}
		slices.Sort(providers)
	}

	// index maps a folded name to its position in merged.
	index := make(map[string]int)
	merged := make([]model.Competitor, 0, len(candidates))
	for _, c := range candidates {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := fold(name)
		if i, dup := index[key]; dup {
			merged[i].MentionCount += mentionCount(in.Responses, providers, name)
			continue
		}
		if containsFold(name, in.Brand) || e.denied(key) {
			continue
		}

		relevance := defaultRelevance
		if c.RelevanceScore != nil && *c.RelevanceScore > 0 {
			relevance = min(*c.RelevanceScore, 100)
		}
		comp := model.Competitor{
			Name:           name,
			Domain:         strings.TrimSpace(c.Domain),
			Providers:      []model.ProviderID{},
			RelevanceScore: relevance,
			Reason:         strings.TrimSpace(c.Reason),
			IsValidated:    relevance > model.ValidatedRelevance,
		}
		for _, id := range providers {
			if containsFold(in.Responses[id], name) {
				comp.MentionCount++
				comp.Providers = append(comp.Providers, id)
			}
		}
		index[key] = len(merged)
		merged = append(merged, comp)
	}

	out := make([]model.Competitor, 0, len(merged))
	for _, comp := range merged {
		if comp.MentionCount == 0 && !comp.IsValidated {
			continue
		}
		out = append(out, comp)
	}

	slices.SortStableFunc(out, func(a, b model.Competitor) int {
		if e.sortMode == SortByMentions && a.MentionCount != b.MentionCount {
			return b.MentionCount - a.MentionCount
		}
		return b.RelevanceScore - a.RelevanceScore
	})
	if len(out) > e.max {
		out = out[:e.max]
	}
	return out
}

func mentionCount(responses map[model.ProviderID]string, providers []model.ProviderID, name string) int {
	n := 0
	for _, id := range providers {
		if containsFold(responses[id], name) {
			n++
		}
	}
	return n
}

// denied reports whether the folded name contains a denylisted entry.
func (e *CompetitorExtractor) denied(folded string) bool {
	for _, d := range e.tables.Denylist {
		if strings.Contains(folded, fold(d)) {
			return true
		}
	}
	return false
}

func joinResponses(in CompetitorInput) string {
	providers := in.Providers
	if len(providers) == 0 {
		for id := range in.Responses {
			providers = append(providers, id)
		}
		slices.Sort(providers)
	}
	parts := make([]string, 0, len(providers))
	for _, id := range providers {
		parts = append(parts, fmt.Sprintf("[%s]: %s", id, in.Responses[id]))
	}
	return strings.Join(parts, "\n\n")
}

// CompetitorNames returns the names of cs.
func CompetitorNames(cs []model.Competitor) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
