package model

import "strings"

// PlanTier is a subscription tier bounding crawl depth and output size.
type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanBasic    PlanTier = "basic"
	PlanPro      PlanTier = "pro"
	PlanBusiness PlanTier = "business"
)

// PlanLimits bounds one analysis run.
type PlanLimits struct {
	Tier               PlanTier `json:"tier"`
	MaxPages           int      `json:"max_pages"`
	MaxRecommendations int      `json:"max_recommendations"`
}

// ParsePlanTier normalizes s. An empty tier is free; any other value is kept
// as given.
func ParsePlanTier(s string) PlanTier {
	t := PlanTier(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return PlanFree
	}
	return t
}

// Known reports whether t is one of the sold tiers.
func (t PlanTier) Known() bool {
	switch t {
	case PlanFree, PlanBasic, PlanPro, PlanBusiness:
		return true
	}
	return false
}

// Limits returns the run limits for the tier. Tiers above pro, including
// unrecognized ones, get the largest limits.
func (t PlanTier) Limits() PlanLimits {
	switch t {
	case PlanFree, "":
		return PlanLimits{Tier: PlanFree, MaxPages: 5, MaxRecommendations: 3}
	case PlanBasic:
		return PlanLimits{Tier: t, MaxPages: 20, MaxRecommendations: 5}
	case PlanPro:
		return PlanLimits{Tier: t, MaxPages: 100, MaxRecommendations: 8}
	default:
		return PlanLimits{Tier: t, MaxPages: 200, MaxRecommendations: 8}
	}
}
