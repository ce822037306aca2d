package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/llm"
	"github.com/sells-group/geo-cli/internal/model"
)

// Recommendation strategies.
const (
	StrategyRules = "rules"
)

const (
	maxRuleRecommendations     = 8
	maxFallbackRecommendations = 5
)

// RecommendationInput carries the run outcome the synthesizers work from.
type RecommendationInput struct {
	Score           int
	MentionRate     float64
	CompetitorCount int
	HasNegative     bool
	Profile         *model.WebsiteProfile
	Pages           []model.CrawledPage
	// Max is the plan's recommendation limit.
	Max int
}

// RecommendationSynthesizer turns a run outcome into prioritized actions.
// Every returned recommendation is Valid and positions start at 1.
type RecommendationSynthesizer interface {
	Synthesize(ctx context.Context, in RecommendationInput) []model.Recommendation
}

// NewRecommendationSynthesizer returns the synthesizer for strategy.
func NewRecommendationSynthesizer(strategy string, completer llm.Completer) (RecommendationSynthesizer, error) {
	switch strategy {
	case StrategyRules:
		return RuleRecommendations{}, nil
	case StrategyGenerative:
		if completer == nil {
			return nil, eris.New("analysis: generative recommendations need a completer")
		}
		return &GenerativeRecommendations{completer: completer}, nil
	default:
		return nil, eris.Errorf("analysis: unknown recommendation strategy %q", strategy)
	}
}

// RuleRecommendations applies a fixed decision table.
type RuleRecommendations struct{}

// Synthesize implements RecommendationSynthesizer.
func (RuleRecommendations) Synthesize(_ context.Context, in RecommendationInput) []model.Recommendation {
	var recs []model.Recommendation
	add := func(p model.Priority, title, desc string, impact model.Impact, cat model.Category) {
		recs = append(recs, model.Recommendation{Priority: p, Title: title, Description: desc, Impact: impact, Category: cat})
	}

	if in.MentionRate < 0.3 {
		add(model.PriorityP0, "Improve your online presence",
			"AI assistants rarely mention your brand. Publish more quality content and earn mentions on authoritative sites.",
			model.ImpactHigh, model.CategoryAuthority)
	}
	if in.CompetitorCount > 5 {
		add(model.PriorityP0, "Differentiate from competitors",
			fmt.Sprintf("%d competitors are mentioned. Put your unique advantages forward in your content.", in.CompetitorCount),
			model.ImpactHigh, model.CategoryContent)
	}
	if in.HasNegative {
		add(model.PriorityP0, "Manage your reputation",
			"Negative sentiment was detected. Work on customer reviews and positive content.",
			model.ImpactHigh, model.CategoryAuthority)
	}
	if in.Score >= 40 && in.Score < 70 {
		add(model.PriorityP1, "Optimize content for AI assistants",
			"Structure your content with factual data, lists and clear comparisons.",
			model.ImpactMedium, model.CategoryContent)
	}
	if in.Score < 40 {
		add(model.PriorityP0, "Create authoritative content",
			"Publish case studies and expert guides, and earn backlinks from recognized sites.",
			model.ImpactHigh, model.CategoryAuthority)
	}

	// The schema and FAQ items are always kept; triggered rules give way.
	n := min(maxRuleRecommendations, planMax(in.Max))
	if keep := max(n-2, 0); len(recs) > keep {
		recs = recs[:keep]
	}
	add(model.PriorityP1, "Implement schema markup",
		"Add structured data (JSON-LD) to help AI assistants understand your content.",
		model.ImpactMedium, model.CategoryTechnical)
	add(model.PriorityP2, "Create a complete FAQ page",
		"AI assistants often draw on FAQs. Answer the frequent questions of your industry.",
		model.ImpactMedium, model.CategoryStructure)

	return finalizeRecommendations(recs, n)
}

// GenerativeRecommendations asks the analysis model for recommendations
// grounded in the crawled pages.
type GenerativeRecommendations struct {
	completer llm.Completer
}

type pageInfo struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	HasDescription bool   `json:"hasDescription"`
	ContentLength  int    `json:"contentLength"`
	Description    string `json:"description,omitempty"`
}

type candidateRecommendation struct {
	Priority      string   `json:"priority"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Impact        string   `json:"impact"`
	Category      string   `json:"category"`
	AffectedPages []string `json:"affectedPages"`
	HowToFix      string   `json:"howToFix"`
}

const recommendationsSystem = "You are an expert in GEO (Generative Engine Optimization) and technical SEO."

const recommendationsPrompt = `Analyze this site and generate actionable recommendations.

SITE ANALYSIS:
- Company: %s
- Industry: %s
- Current GEO score: %d/100
- AI mention rate: %d%%
- Detected technical issues: %s

ANALYZED PAGES:
%s

GENERATE %d RECOMMENDATIONS in this JSON format:
[
  {
    "priority": "P0",
    "title": "Short actionable title",
    "description": "Detailed description of the problem",
    "impact": "high",
    "category": "technical",
    "affectedPages": ["url1", "url2"],
    "howToFix": "Concrete instructions to fix it"
  }
]

PRIORITIES:
- P0: Critical, immediate impact on AI visibility
- P1: Important, significant improvement
- P2: Nice-to-have, optimization

CATEGORIES:
- content: Content quality and structure
- technical: Technical SEO, structured data, performance
- authority: Backlinks, mentions, citations
- structure: Site architecture, navigation, UX

Return ONLY the JSON array.`

// Synthesize implements RecommendationSynthesizer.
func (g *GenerativeRecommendations) Synthesize(ctx context.Context, in RecommendationInput) []model.Recommendation {
	n := planMax(in.Max)
	log := zap.L().With(zap.String("stage", "recommendations"), zap.Int("max", n))

	p := in.Profile
	if p == nil {
		p = FallbackProfile("")
	}
	issues := strings.Join(p.TechnicalIssues, ", ")
	if issues == "" {
		issues = "None"
	}
	pagesJSON, err := json.MarshalIndent(pageInfos(in.Pages), "", "  ")
	if err != nil {
		pagesJSON = []byte("[]")
	}

	prompt := fmt.Sprintf(recommendationsPrompt,
		p.CompanyName, p.Industry, in.Score,
		int(math.Round(in.MentionRate*100)), issues,
		pagesJSON, n,
	)

	raw, err := g.completer.Complete(ctx, recommendationsSystem, prompt, 3000)
	if err != nil {
		log.Warn("analysis: recommendation call failed, using fallback", zap.Error(err))
		return fallbackRecommendations(in, n)
	}

	candidates, ok := ParseOrDefault[[]candidateRecommendation](raw, nil, nil)
	if !ok {
		log.Warn("analysis: recommendation answer unusable, using fallback", zap.Int("answer_len", len(raw)))
		return fallbackRecommendations(in, n)
	}

	var recs []model.Recommendation
	rejected := 0
	for _, c := range candidates {
		rec, ok := c.toModel()
		if !ok {
			rejected++
			continue
		}
		recs = append(recs, rec)
	}
	if rejected > 0 {
		log.Warn("analysis: rejected invalid recommendations", zap.Int("rejected", rejected))
	}
	if len(recs) == 0 {
		return fallbackRecommendations(in, n)
	}
	return finalizeRecommendations(recs, n)
}

func (c candidateRecommendation) toModel() (model.Recommendation, bool) {
	priority, ok := model.ParsePriority(c.Priority)
	if !ok {
		return model.Recommendation{}, false
	}
	impact, ok := model.ParseImpact(c.Impact)
	if !ok {
		return model.Recommendation{}, false
	}
	category, ok := model.ParseCategory(c.Category)
	if !ok {
		return model.Recommendation{}, false
	}
	rec := model.Recommendation{
		Priority:      priority,
		Title:         strings.TrimSpace(c.Title),
		Description:   strings.TrimSpace(c.Description),
		Impact:        impact,
		Category:      category,
		AffectedPages: cleanList(c.AffectedPages),
		HowToFix:      strings.TrimSpace(c.HowToFix),
	}
	return rec, rec.Valid()
}

func fallbackRecommendations(in RecommendationInput, n int) []model.Recommendation {
	var recs []model.Recommendation
	if in.MentionRate < 0.3 {
		recs = append(recs, model.Recommendation{
			Priority:    model.PriorityP0,
			Title:       "Improve your online presence",
			Description: "AI assistants rarely mention your brand. You need to increase your visibility.",
			Impact:      model.ImpactHigh,
			Category:    model.CategoryAuthority,
			HowToFix:    "Publish expert content on your blog, get mentioned in industry publications and write detailed case studies.",
		})
	}
	if in.Score < 50 {
		recs = append(recs, model.Recommendation{
			Priority:    model.PriorityP0,
			Title:       "Add structured data",
			Description: "Structured data (JSON-LD) helps AI assistants understand your content.",
			Impact:      model.ImpactHigh,
			Category:    model.CategoryTechnical,
			HowToFix:    "Add the Organization, LocalBusiness and FAQ schemas to your main pages.",
		})
	}
	recs = append(recs, model.Recommendation{
		Priority:    model.PriorityP1,
		Title:       "Create a complete FAQ page",
		Description: "AI assistants often draw on FAQs to answer questions.",
		Impact:      model.ImpactMedium,
		Category:    model.CategoryStructure,
		HowToFix:    "Create an FAQ page with 15 to 20 frequent questions about your services and industry.",
	})
	return finalizeRecommendations(recs, min(maxFallbackRecommendations, n))
}

func pageInfos(pages []model.CrawledPage) []pageInfo {
	out := make([]pageInfo, len(pages))
	for i, p := range pages {
		out[i] = pageInfo{
			URL:            p.URL,
			Title:          p.Title,
			HasDescription: p.HasDescription(),
			ContentLength:  len(p.Markdown),
			Description:    truncateRunes(p.Description, 100),
		}
	}
	return out
}

// planMax returns the plan's recommendation limit, defaulting to the
// largest plan limit.
func planMax(n int) int {
	if n <= 0 {
		return maxRuleRecommendations
	}
	return n
}

// finalizeRecommendations truncates recs to n and numbers them from 1.
func finalizeRecommendations(recs []model.Recommendation, n int) []model.Recommendation {
	if len(recs) > n {
		recs = recs[:n]
	}
	for i := range recs {
		recs[i].Position = i + 1
	}
	return recs
}
