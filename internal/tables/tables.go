// Package tables holds the versioned policy tables (competitor denylist,
// stopwords, sentiment words, industry keywords, question templates) used by
// the analysis stages.
package tables

import (
	_ "embed"
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Industry maps an industry label to the keywords that indicate it.
type Industry struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Tables is an immutable set of policy tables. Callers must not modify the
// slices of a shared value.
type Tables struct {
	Version           string     `yaml:"version"`
	DefaultBrand      string     `yaml:"default_brand"`
	DefaultIndustry   string     `yaml:"default_industry"`
	Denylist          []string   `yaml:"denylist"`
	PositiveWords     []string   `yaml:"positive_words"`
	NegativeWords     []string   `yaml:"negative_words"`
	Stopwords         []string   `yaml:"stopwords"`
	Industries        []Industry `yaml:"industries"`
	QuestionTemplates []string   `yaml:"question_templates"`
	FallbackQuestions []string   `yaml:"fallback_questions"`

	stopwordSet map[string]struct{}
}

// Default returns the built-in tables.
func Default() *Tables {
	t, err := Parse(defaultYAML, nil)
	if err != nil {
		// The embedded file is part of the binary; failing here is a build defect.
		panic(eris.Wrap(err, "tables: parse embedded defaults"))
	}
	return t
}

// Load returns the built-in tables overridden by the keys present in the
// YAML file at path. An empty path returns the defaults.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tables: read %s", path)
	}
	return Parse(data, Default())
}

// Parse decodes tables from YAML on top of base (nil for none) and
// validates the result.
func Parse(data []byte, base *Tables) (*Tables, error) {
	t := &Tables{}
	if base != nil {
		*t = *base
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, eris.Wrap(err, "tables: parse yaml")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}

	t.Denylist = lowerAll(t.Denylist)
	t.PositiveWords = lowerAll(t.PositiveWords)
	t.NegativeWords = lowerAll(t.NegativeWords)
	t.stopwordSet = make(map[string]struct{}, len(t.Stopwords))
	for _, w := range t.Stopwords {
		t.stopwordSet[Fold(strings.TrimSpace(w))] = struct{}{}
	}
	return t, nil
}

func (t *Tables) validate() error {
	if t.Version == "" {
		return eris.New("tables: version is required")
	}
	if len(t.QuestionTemplates) == 0 {
		return eris.New("tables: question_templates must not be empty")
	}
	if t.DefaultIndustry == "" {
		return eris.New("tables: default_industry is required")
	}
	for i, ind := range t.Industries {
		if ind.Label == "" || len(ind.Keywords) == 0 {
			return eris.Errorf("tables: industry %d needs a label and keywords", i)
		}
	}
	return nil
}

// IsStopword reports whether w, already passed through Fold, is excluded
// from keywords.
func (t *Tables) IsStopword(w string) bool {
	_, ok := t.stopwordSet[w]
	return ok
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Fold case-folds s and strips combining marks so that "Café" and "cafe"
// compare equal. Transformers are stateful, so one is built per call.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}
