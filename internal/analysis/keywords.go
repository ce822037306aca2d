package analysis

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/tables"
)

const maxKeywords = 20

// ExtractKeywords returns the most frequent words longer than four
// characters that are not stopwords. Ties keep first-occurrence order.
func ExtractKeywords(content string, tb *tables.Tables) []string {
	words := strings.FieldsFunc(fold(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 4 || tb.IsStopword(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// DetectIndustry returns the industry label with the most of its keywords
// present in content. Industry keywords are matched as substrings, so short
// terms such as "app" or "seo" count even though ExtractKeywords drops
// them. Ties go to the earlier table entry; no match yields the table
// default.
func DetectIndustry(content string, tb *tables.Tables) string {
	folded := fold(content)
	best, bestScore := tb.DefaultIndustry, 0
	for _, ind := range tb.Industries {
		score := 0
		for _, kw := range ind.Keywords {
			if strings.Contains(folded, fold(kw)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = ind.Label, score
		}
	}
	return best
}

// pageText concatenates page titles and content for the heuristic stages.
func pageText(pages []model.CrawledPage) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Title)
		b.WriteByte('\n')
		b.WriteString(p.Markdown)
		b.WriteByte('\n')
	}
	return b.String()
}
