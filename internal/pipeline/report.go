package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/geo-cli/internal/model"
)

// FormatReport renders an analysis report as markdown for the terminal.
func FormatReport(rep *model.AnalysisReport) string {
	var b strings.Builder
	a := rep.Analysis

	name := a.BrandName
	if name == "" {
		name = a.URL
	}
	fmt.Fprintf(&b, "# Visibility Report: %s\n", name)
	fmt.Fprintf(&b, "URL: %s\n", a.URL)
	fmt.Fprintf(&b, "ID: %s\n\n", a.ID)

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Status: %s (%d%%)\n", a.Status, a.Progress)
	fmt.Fprintf(&b, "- Step: %s\n", a.CurrentStep)
	if a.Score != nil {
		fmt.Fprintf(&b, "- Score: %d/100\n", *a.Score)
	}
	fmt.Fprintf(&b, "- Pages crawled: %d\n", a.PagesCrawled)
	fmt.Fprintf(&b, "- Questions: %d\n\n", a.QuestionsGenerated)

	if len(rep.ProviderScores) > 0 {
		b.WriteString("## Providers\n")
		for _, ps := range rep.ProviderScores {
			fmt.Fprintf(&b, "- %s: %d (%d mentions)\n", ps.DisplayName, ps.Score, ps.Mentions)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Competitors\n")
	if len(rep.Competitors) == 0 {
		b.WriteString("No competitors found.\n\n")
	} else {
		for _, c := range rep.Competitors {
			mark := ""
			if c.IsValidated {
				mark = " [validated]"
			}
			fmt.Fprintf(&b, "- **%s**: %d mentions, relevance %d%s\n", c.Name, c.MentionCount, c.RelevanceScore, mark)
		}
		b.WriteString("\n")
	}

	if len(rep.Recommendations) > 0 {
		b.WriteString("## Recommendations\n")
		for _, r := range rep.Recommendations {
			fmt.Fprintf(&b, "%d. [%s] %s\n", r.Position, r.Priority, r.Title)
			if r.Description != "" {
				fmt.Fprintf(&b, "   %s\n", r.Description)
			}
		}
	}

	return b.String()
}
