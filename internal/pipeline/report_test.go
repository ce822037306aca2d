package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/geo-cli/internal/model"
)

func TestFormatReport(t *testing.T) {
	score := 63
	rep := &model.AnalysisReport{
		Analysis: &model.Analysis{
			ID:                 "a-1",
			URL:                "https://acme.com",
			BrandName:          "Acme",
			Status:             model.AnalysisStatusCompleted,
			Progress:           100,
			CurrentStep:        "Analysis complete",
			PagesCrawled:       4,
			QuestionsGenerated: 10,
			Score:              &score,
		},
		ProviderScores: []model.ProviderScore{
			{Provider: model.ProviderOpenAI, DisplayName: "ChatGPT", Score: 70, Mentions: 7},
		},
		Competitors: []model.Competitor{
			{Name: "Globex", MentionCount: 3, RelevanceScore: 85, IsValidated: true},
		},
		Recommendations: []model.Recommendation{
			{Position: 1, Priority: model.PriorityP0, Title: "Create a complete FAQ page", Description: "Answer common questions."},
		},
	}

	out := FormatReport(rep)

	assert.Contains(t, out, "# Visibility Report: Acme")
	assert.Contains(t, out, "Score: 63/100")
	assert.Contains(t, out, "Pages crawled: 4")
	assert.Contains(t, out, "ChatGPT: 70 (7 mentions)")
	assert.Contains(t, out, "**Globex**: 3 mentions, relevance 85 [validated]")
	assert.Contains(t, out, "1. [P0] Create a complete FAQ page")
}

func TestFormatReport_Pending(t *testing.T) {
	rep := &model.AnalysisReport{Analysis: &model.Analysis{
		ID: "a-2", URL: "https://empty.example", Status: model.AnalysisStatusPending,
	}}

	out := FormatReport(rep)

	assert.Contains(t, out, "# Visibility Report: https://empty.example")
	assert.Contains(t, out, "Status: pending (0%)")
	assert.Contains(t, out, "No competitors found.")
	assert.NotContains(t, out, "Score:")
	assert.NotContains(t, out, "## Recommendations")
}
