// Package analysis implements the content stages of a visibility run:
// website profiling, probe question generation, response scoring,
// competitor extraction and recommendation synthesis.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/llm"
	"github.com/sells-group/geo-cli/internal/model"
)

// DefaultProfileBudget is the maximum number of characters of site content
// sent to the profiling call.
const DefaultProfileBudget = 8000

const profileSystem = "You are an expert in business analysis and digital marketing."

const profilePrompt = `Analyze this website in depth.

SITE CONTENT:
%s

BRAND NAME PROVIDED: %s

Return a JSON object with exactly this structure:
{
  "companyName": "Detected company name",
  "industry": "Main industry (e.g. digital marketing, web development, consulting)",
  "services": ["Service 1", "Service 2", "Service 3"],
  "targetMarket": "Target market (e.g. SMBs in Quebec, tech startups)",
  "location": "Location (city, state or province, country)",
  "uniqueSellingPoints": ["Advantage 1", "Advantage 2"],
  "keywords": ["keyword 1", "keyword 2", "keyword 3"],
  "potentialCompetitors": ["Potential competitor 1", "Potential competitor 2"],
  "technicalIssues": ["Detected SEO or technical issue 1", "Issue 2"]
}

RULES:
- Be precise about the location (city if possible).
- Potential competitors must be of SIMILAR SIZE and in the SAME REGION.
- Technical issues: missing structured data, pages without a meta description, duplicate content, etc.
- Return ONLY the JSON, nothing else.`

// Profiler derives a WebsiteProfile from crawled pages.
type Profiler struct {
	completer llm.Completer
	budget    int
}

// NewProfiler creates a Profiler. A budget <= 0 uses DefaultProfileBudget.
func NewProfiler(completer llm.Completer, budget int) *Profiler {
	if budget <= 0 {
		budget = DefaultProfileBudget
	}
	return &Profiler{completer: completer, budget: budget}
}

// Profile extracts the site profile. It never fails: an unreachable or
// malformed generative answer yields FallbackProfile(brandHint).
func (p *Profiler) Profile(ctx context.Context, pages []model.CrawledPage, brandHint string) *model.WebsiteProfile {
	log := zap.L().With(zap.String("stage", "profile"), zap.Int("pages", len(pages)))
	lang := dominantLanguage(pages)

	hint := brandHint
	if hint == "" {
		hint = "Not specified"
	}
	prompt := fmt.Sprintf(profilePrompt, ProfileContent(pages, p.budget), hint)

	raw, err := p.completer.Complete(ctx, profileSystem, prompt, 1500)
	if err != nil {
		log.Warn("analysis: profile call failed, using fallback", zap.Error(err))
		fb := FallbackProfile(brandHint)
		fb.Language = lang
		return fb
	}

	profile, ok := ParseOrDefault(raw, validProfile, model.WebsiteProfile{})
	if !ok {
		log.Warn("analysis: profile answer unusable, using fallback", zap.Int("answer_len", len(raw)))
		fb := FallbackProfile(brandHint)
		fb.Language = lang
		return fb
	}

	normalizeProfile(&profile)
	profile.Language = lang
	log.Info("analysis: profile extracted",
		zap.String("company", profile.CompanyName),
		zap.String("industry", profile.Industry),
		zap.Int("services", len(profile.Services)),
	)
	return &profile
}

// ProfileContent joins pages as "## title\nURL: url\ncontent" blocks
// separated by horizontal rules and truncates the result to budget runes.
func ProfileContent(pages []model.CrawledPage, budget int) string {
	blocks := make([]string, len(pages))
	for i, p := range pages {
		blocks[i] = fmt.Sprintf("## %s\nURL: %s\n%s", p.Title, p.URL, p.Markdown)
	}
	return truncateRunes(strings.Join(blocks, "\n\n---\n\n"), budget)
}

// FallbackProfile is the profile used when extraction fails.
func FallbackProfile(brand string) *model.WebsiteProfile {
	company := strings.TrimSpace(brand)
	if company == "" {
		company = "Unknown company"
	}
	return &model.WebsiteProfile{
		CompanyName:          company,
		Industry:             "professional services",
		Services:             []string{},
		TargetMarket:         "Businesses",
		Location:             "Unknown",
		UniqueSellingPoints:  []string{},
		Keywords:             []string{},
		PotentialCompetitors: []string{},
		TechnicalIssues:      []string{},
		Fallback:             true,
	}
}

func validProfile(p model.WebsiteProfile) bool {
	return strings.TrimSpace(p.CompanyName) != "" || strings.TrimSpace(p.Industry) != ""
}

func normalizeProfile(p *model.WebsiteProfile) {
	p.CompanyName = strings.TrimSpace(p.CompanyName)
	p.Industry = strings.TrimSpace(p.Industry)
	if p.Industry == "" {
		p.Industry = "professional services"
	}
	p.Services = cleanList(p.Services)
	p.UniqueSellingPoints = cleanList(p.UniqueSellingPoints)
	p.Keywords = cleanList(p.Keywords)
	p.PotentialCompetitors = cleanList(p.PotentialCompetitors)
	p.TechnicalIssues = cleanList(p.TechnicalIssues)
}

// cleanList trims entries and drops empty ones. The result is never nil.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// dominantLanguage returns the most common detected page language.
func dominantLanguage(pages []model.CrawledPage) string {
	counts := make(map[string]int)
	best := ""
	for _, p := range pages {
		if p.Language == "" {
			continue
		}
		counts[p.Language]++
		if counts[p.Language] > counts[best] {
			best = p.Language
		}
	}
	return best
}
