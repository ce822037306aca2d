package tables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	tb := Default()

	assert.NotEmpty(t, tb.Version)
	assert.Equal(t, "this company", tb.DefaultBrand)
	assert.Equal(t, "business services", tb.DefaultIndustry)
	assert.Len(t, tb.QuestionTemplates, 10)
	assert.Len(t, tb.FallbackQuestions, 6)
	assert.Contains(t, tb.Denylist, "hubspot")
	assert.Contains(t, tb.Denylist, "boston consulting")
	assert.Len(t, tb.PositiveWords, 8)
	assert.Len(t, tb.NegativeWords, 7)
	require.Len(t, tb.Industries, 7)
	assert.Equal(t, "technology", tb.Industries[0].Label)
	assert.Equal(t, "education", tb.Industries[6].Label)
	assert.True(t, tb.IsStopword("their"))
	assert.False(t, tb.IsStopword("software"))
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	tb, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Version, tb.Version)
}

func TestLoad_OverridesOnlyPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := `
version: "test-1"
denylist: [Acme Holdings, "  Globex "]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tb, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-1", tb.Version)
	assert.Equal(t, []string{"acme holdings", "globex"}, tb.Denylist)
	// Untouched tables keep their defaults.
	assert.Len(t, tb.QuestionTemplates, 10)
	assert.True(t, tb.IsStopword("which"))
}

func TestLoad_AccentedStopwordsMatchFoldedWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := `
version: "test-2"
stopwords: ["Éléphant", "  Déjà "]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tb, err := Load(path)
	require.NoError(t, err)

	assert.True(t, tb.IsStopword(Fold("éléphant")))
	assert.True(t, tb.IsStopword("elephant"))
	assert.True(t, tb.IsStopword("deja"))
	assert.False(t, tb.IsStopword("which"), "stopwords list replaced by the override")
}

func TestFold(t *testing.T) {
	assert.Equal(t, "cafe", Fold("Café"))
	assert.Equal(t, "studio elan", Fold("Studio ÉLAN"))
	assert.Equal(t, "strasse", Fold("STRASSE"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no version", `question_templates: ["a"]
default_industry: x`, "version is required"},
		{"no templates", `version: "1"
default_industry: x`, "question_templates"},
		{"bad industry", `version: "1"
default_industry: x
question_templates: ["a"]
industries: [{label: "", keywords: []}]`, "industry 0"},
		{"malformed", "version: [", "parse yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
