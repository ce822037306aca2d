package model

import "strings"

// Priority ranks a recommendation by urgency.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

// Impact estimates the effect of acting on a recommendation.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Category groups recommendations by the kind of work involved.
type Category string

const (
	CategoryContent   Category = "content"
	CategoryTechnical Category = "technical"
	CategoryAuthority Category = "authority"
	CategoryStructure Category = "structure"
)

// ParsePriority normalizes s and reports whether it is a known priority.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PriorityP0, PriorityP1, PriorityP2:
		return p, true
	}
	return "", false
}

// ParseImpact normalizes s and reports whether it is a known impact.
func ParseImpact(s string) (Impact, bool) {
	i := Impact(strings.ToLower(strings.TrimSpace(s)))
	switch i {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return i, true
	}
	return "", false
}

// ParseCategory normalizes s and reports whether it is a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryContent, CategoryTechnical, CategoryAuthority, CategoryStructure:
		return c, true
	}
	return "", false
}

// Recommendation is one prioritized improvement action.
type Recommendation struct {
	AnalysisID    string   `json:"analysis_id,omitempty"`
	Position      int      `json:"position"`
	Priority      Priority `json:"priority"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Impact        Impact   `json:"impact"`
	Category      Category `json:"category"`
	AffectedPages []string `json:"affected_pages,omitempty"`
	HowToFix      string   `json:"how_to_fix,omitempty"`
}

// Valid reports whether every enumerated field holds a known value.
func (r Recommendation) Valid() bool {
	if strings.TrimSpace(r.Title) == "" {
		return false
	}
	if _, ok := ParsePriority(string(r.Priority)); !ok {
		return false
	}
	if _, ok := ParseImpact(string(r.Impact)); !ok {
		return false
	}
	_, ok := ParseCategory(string(r.Category))
	return ok
}
