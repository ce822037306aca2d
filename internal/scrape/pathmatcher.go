package scrape

import (
	"net/url"
	"path"
	"strings"
)

// DefaultExcludePatterns skip content sections that say little about what
// a business does.
var DefaultExcludePatterns = []string{
	"/blog/*",
	"/news/*",
	"/press/*",
	"/careers/*",
	"/tag/*",
	"/category/*",
	"/wp-admin/*",
	"*.pdf",
}

// PathMatcher filters URLs by glob patterns. Patterns starting with "/"
// match the full path, and "/x/*" also matches deeper paths under /x.
// Patterns without a leading slash match the last path segment.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher. Nil or empty patterns use
// DefaultExcludePatterns.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = DefaultExcludePatterns
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether rawURL matches any pattern. Unparseable URLs
// are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, urlPath string) bool {
	if !strings.HasPrefix(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(urlPath))
		return ok
	}
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if dir, found := strings.CutSuffix(pattern, "/*"); found {
		return urlPath == dir || strings.HasPrefix(urlPath, dir+"/")
	}
	return false
}
