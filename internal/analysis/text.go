package analysis

import (
	"strings"

	"github.com/sells-group/geo-cli/internal/tables"
)

// fold is tables.Fold, so table lookups and content matching agree.
func fold(s string) string { return tables.Fold(s) }

// containsFold reports whether needle occurs in haystack ignoring case and
// accents. An empty needle never matches.
func containsFold(haystack, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return false
	}
	return strings.Contains(fold(haystack), fold(needle))
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
