package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanTier_Limits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		pages    int
		recs     int
		wantTier PlanTier
	}{
		{"free", 5, 3, PlanFree},
		{"basic", 20, 5, PlanBasic},
		{"pro", 100, 8, PlanPro},
		{"business", 200, 8, PlanBusiness},
		{" PRO ", 100, 8, PlanPro},
		{"", 5, 3, PlanFree},
		{"enterprise", 200, 8, PlanTier("enterprise")},
		{" Enterprise ", 200, 8, PlanTier("enterprise")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			limits := ParsePlanTier(tt.input).Limits()
			assert.Equal(t, tt.wantTier, limits.Tier)
			assert.Equal(t, tt.pages, limits.MaxPages)
			assert.Equal(t, tt.recs, limits.MaxRecommendations)
		})
	}
}

func TestPlanTier_Known(t *testing.T) {
	t.Parallel()

	for _, tier := range []PlanTier{PlanFree, PlanBasic, PlanPro, PlanBusiness} {
		assert.True(t, tier.Known(), tier)
	}
	assert.False(t, PlanTier("enterprise").Known())
	assert.False(t, PlanTier("").Known())
}

func TestAnalysisStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, AnalysisStatusCompleted.IsTerminal())
	assert.True(t, AnalysisStatusFailed.IsTerminal())
	assert.False(t, AnalysisStatusScoring.IsTerminal())

	assert.True(t, AnalysisStatusPending.IsStartable())
	assert.True(t, AnalysisStatusFailed.IsStartable())
	assert.False(t, AnalysisStatusCrawling.IsStartable())
	assert.False(t, AnalysisStatusCompleted.IsStartable())
}

func TestRecommendation_Valid(t *testing.T) {
	t.Parallel()

	base := Recommendation{
		Priority: PriorityP1,
		Title:    "Add FAQ",
		Impact:   ImpactMedium,
		Category: CategoryStructure,
	}
	assert.True(t, base.Valid())

	bad := base
	bad.Priority = "P3"
	assert.False(t, bad.Valid())

	bad = base
	bad.Category = "seo"
	assert.False(t, bad.Valid())

	bad = base
	bad.Impact = "huge"
	assert.False(t, bad.Valid())

	bad = base
	bad.Title = "  "
	assert.False(t, bad.Valid())
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	p, ok := ParsePriority(" p0")
	assert.True(t, ok)
	assert.Equal(t, PriorityP0, p)

	c, ok := ParseCategory("Technical")
	assert.True(t, ok)
	assert.Equal(t, CategoryTechnical, c)

	i, ok := ParseImpact("LOW")
	assert.True(t, ok)
	assert.Equal(t, ImpactLow, i)

	_, ok = ParseCategory("marketing")
	assert.False(t, ok)
}
