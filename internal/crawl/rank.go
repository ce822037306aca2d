package crawl

import (
	"net/url"
	"slices"
	"strings"
)

// keySections are the pages that best describe a business. Links whose
// path contains one of them are fetched first.
var keySections = []string{
	"about", "service", "product", "solution", "pricing", "contact",
	"team", "company", "offer", "prestation", "a-propos", "tarif",
}

// rankLinks orders links by descending section weight, then by path depth.
// The sort is stable so document order breaks ties.
func rankLinks(links []string) []string {
	out := slices.Clone(links)
	slices.SortStableFunc(out, func(a, b string) int {
		if wa, wb := linkWeight(a), linkWeight(b); wa != wb {
			return wb - wa
		}
		return pathDepth(a) - pathDepth(b)
	})
	return out
}

func linkWeight(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	p := strings.ToLower(u.Path)
	for _, s := range keySections {
		if strings.Contains(p, s) {
			return 1
		}
	}
	return 0
}

func pathDepth(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	return len(strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' }))
}
