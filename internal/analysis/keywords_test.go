package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/tables"
)

func TestExtractKeywords(t *testing.T) {
	tb := tables.Default()
	content := "Marketing marketing MARKETING agency agency strategy. Their their their their team. Tiny words are out. Stratégie"

	got := ExtractKeywords(content, tb)

	assert.Equal(t, []string{"marketing", "agency", "strategy", "words", "strategie"}, got)
	assert.NotContains(t, got, "their", "stopwords are skipped")
	assert.NotContains(t, got, "team", "short words are skipped")
}

func TestExtractKeywords_AccentedStopwords(t *testing.T) {
	tb, err := tables.Parse([]byte(`stopwords: ["Qualité", "DERNIÈRE"]`), tables.Default())
	require.NoError(t, err)

	got := ExtractKeywords("Qualité qualite QUALITÉ dernière service services", tb)

	assert.Equal(t, []string{"service", "services"}, got)
}

func TestExtractKeywords_CapsAtTwenty(t *testing.T) {
	var words []string
	for i := 0; i < 30; i++ {
		words = append(words, fmt.Sprintf("keyword%02d", i))
	}
	got := ExtractKeywords(strings.Join(words, " "), tables.Default())
	assert.Len(t, got, 20)
	assert.Equal(t, "keyword00", got[0])
}

func TestDetectIndustry(t *testing.T) {
	tb := tables.Default()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"technology", "Our cloud software platform for digital teams", "technology"},
		{"marketing", "SEO and advertising campaigns for your brand", "marketing"},
		{"healthcare", "A wellness clinic with medical staff", "healthcare"},
		{"no match", "We fix bicycles", "business services"},
		// "app" and "brand" each score one; technology comes first.
		{"tie keeps table order", "An app for your brand", "technology"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectIndustry(tt.content, tb))
		})
	}
}

func TestPageText(t *testing.T) {
	got := pageText([]model.CrawledPage{{Title: "A", Markdown: "one"}, {Title: "B", Markdown: "two"}})
	assert.Equal(t, "A\none\nB\ntwo\n", got)
}
