package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/llm"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/tables"
)

// Question strategies.
const (
	StrategyHeuristic  = "heuristic"
	StrategyGenerative = "generative"
)

// DefaultMaxQuestions bounds the generated question list.
const DefaultMaxQuestions = 12

// QuestionInput is what a QuestionGenerator works from.
type QuestionInput struct {
	Brand   string
	Profile *model.WebsiteProfile
	Pages   []model.CrawledPage
}

// QuestionGenerator produces the probe questions sent to every provider.
// Implementations never fail; they degrade to template questions.
type QuestionGenerator interface {
	Generate(ctx context.Context, in QuestionInput) []string
}

// NewQuestionGenerator returns the generator for strategy.
func NewQuestionGenerator(strategy string, completer llm.Completer, tb *tables.Tables, maxQuestions int) (QuestionGenerator, error) {
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}
	switch strategy {
	case StrategyHeuristic:
		return &HeuristicQuestions{tables: tb, max: maxQuestions}, nil
	case StrategyGenerative:
		if completer == nil {
			return nil, eris.New("analysis: generative questions need a completer")
		}
		return &GenerativeQuestions{completer: completer, tables: tb, max: maxQuestions}, nil
	default:
		return nil, eris.Errorf("analysis: unknown question strategy %q", strategy)
	}
}

// HeuristicQuestions fills the fixed templates with the brand and the
// industry detected from the page text.
type HeuristicQuestions struct {
	tables *tables.Tables
	max    int
}

// Generate implements QuestionGenerator.
func (h *HeuristicQuestions) Generate(_ context.Context, in QuestionInput) []string {
	industry := DetectIndustry(pageText(in.Pages), h.tables)
	zap.L().Debug("analysis: heuristic questions", zap.String("industry", industry))
	return limit(templateQuestions(h.tables, in.Brand, industry), h.max)
}

// GenerativeQuestions asks the analysis model for questions tailored to the
// profile.
type GenerativeQuestions struct {
	completer llm.Completer
	tables    *tables.Tables
	max       int
}

const questionsSystem = "You write the questions prospective customers ask AI assistants when looking for a business."

const questionsPrompt = `Generate 12 questions that potential customers would ask ChatGPT, Claude or Perplexity to find a business like this one.

COMPANY PROFILE:
- Name: %s
- Industry: %s
- Services: %s
- Target market: %s
- Location: %s
- Keywords: %s

QUESTION TYPES TO GENERATE:
1. 3 local discovery questions ("best X agency in [city]")
2. 3 general recommendation questions ("who can help me with...")
3. 2 questions naming "%s" directly
4. 2 comparison questions ("compare the agencies that...")
5. 2 service-specific questions ("expert in [service]")

Return ONLY a JSON array of 12 questions:
["Question 1", "Question 2", ...]`

// Generate implements QuestionGenerator.
func (g *GenerativeQuestions) Generate(ctx context.Context, in QuestionInput) []string {
	p := in.Profile
	if p == nil {
		p = FallbackProfile(in.Brand)
	}
	log := zap.L().With(zap.String("stage", "questions"))

	prompt := fmt.Sprintf(questionsPrompt,
		p.CompanyName, p.Industry,
		strings.Join(p.Services, ", "), p.TargetMarket, p.Location,
		strings.Join(p.Keywords, ", "), p.CompanyName,
	)

	raw, err := g.completer.Complete(ctx, questionsSystem, prompt, 1024)
	if err != nil {
		log.Warn("analysis: question call failed, using fallback", zap.Error(err))
		return g.fallback(p)
	}

	questions, ok := ParseOrDefault(raw, func(qs []string) bool { return len(cleanList(qs)) > 0 }, nil)
	if !ok {
		log.Warn("analysis: question answer unusable, using fallback", zap.Int("answer_len", len(raw)))
		return g.fallback(p)
	}
	return limit(cleanList(questions), g.max)
}

// fallback builds questions from the profile: the profile-aware fallback
// set when the profile was extracted, the plain templates otherwise.
func (g *GenerativeQuestions) fallback(p *model.WebsiteProfile) []string {
	if p.Fallback {
		return limit(templateQuestions(g.tables, p.CompanyName, p.Industry), g.max)
	}
	service := p.Industry
	if len(p.Services) > 0 {
		service = p.Services[0]
	}
	r := strings.NewReplacer(
		"{brand}", p.CompanyName,
		"{industry}", p.Industry,
		"{location}", p.Location,
		"{service}", service,
	)
	out := make([]string, 0, len(g.tables.FallbackQuestions))
	for _, q := range g.tables.FallbackQuestions {
		out = append(out, r.Replace(q))
	}
	if len(out) == 0 {
		return limit(templateQuestions(g.tables, p.CompanyName, p.Industry), g.max)
	}
	return limit(out, g.max)
}

func templateQuestions(tb *tables.Tables, brand, industry string) []string {
	if strings.TrimSpace(brand) == "" {
		brand = tb.DefaultBrand
	}
	if strings.TrimSpace(industry) == "" {
		industry = tb.DefaultIndustry
	}
	r := strings.NewReplacer("{brand}", brand, "{industry}", industry)
	out := make([]string, len(tb.QuestionTemplates))
	for i, q := range tb.QuestionTemplates {
		out[i] = r.Replace(q)
	}
	return out
}

func limit(qs []string, n int) []string {
	if len(qs) > n {
		return qs[:n]
	}
	return qs
}
