// Package llm adapts the provider API clients to a single query capability
// and fans one probe question out to every configured provider.
package llm

import (
	"context"

	"github.com/sells-group/geo-cli/internal/model"
)

// Provider answers a single prompt. Implementations return an error on any
// failure; the fan-out converts failures to empty answers.
type Provider interface {
	ID() model.ProviderID
	Query(ctx context.Context, prompt string) (string, error)
}

// Info is the display metadata of a provider.
type Info struct {
	ID          model.ProviderID `json:"id"`
	DisplayName string           `json:"display_name"`
	Color       string           `json:"color"`
}

// Catalog lists every supported provider in display order.
var Catalog = []Info{
	{ID: model.ProviderOpenAI, DisplayName: "ChatGPT", Color: "#10a37f"},
	{ID: model.ProviderAnthropic, DisplayName: "Claude", Color: "#d4a574"},
	{ID: model.ProviderGoogle, DisplayName: "Gemini", Color: "#4285f4"},
	{ID: model.ProviderPerplexity, DisplayName: "Perplexity", Color: "#20b2aa"},
}

// Lookup returns the catalog entry for id. Unknown ids get the id as display
// name and a neutral color.
func Lookup(id model.ProviderID) Info {
	for _, info := range Catalog {
		if info.ID == id {
			return info
		}
	}
	return Info{ID: id, DisplayName: string(id), Color: "#888888"}
}
