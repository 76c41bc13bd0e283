package models

import (
	"context"
	"sort"
	"strings"

	"github.com/cuygur/llm-council/internal/openrouter"
)

// Entry is one selectable model in the catalog.
type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
}

// Lister is the catalog-fetch slice of the gateway client.
type Lister interface {
	ListModels(ctx context.Context) ([]openrouter.Model, error)
}

// DefaultCatalog returns the curated model list matching the price table.
func DefaultCatalog() []Entry {
	return []Entry{
		{ID: "openai/gpt-5.2", Name: "GPT-5.2", Provider: "OpenAI", Description: "Most capable GPT model"},
		{ID: "anthropic/claude-sonnet-4.5", Name: "Claude Sonnet 4.5", Provider: "Anthropic", Description: "Balanced performance and speed"},
		{ID: "anthropic/claude-opus-4.5", Name: "Claude Opus 4.5", Provider: "Anthropic", Description: "Most capable Claude model"},
		{ID: "google/gemini-3-pro-preview", Name: "Gemini 3 Pro", Provider: "Google", Description: "Advanced multimodal model"},
		{ID: "google/gemini-3-flash-preview", Name: "Gemini 3 Flash", Provider: "Google", Description: "Fast and efficient preview model"},
		{ID: "x-ai/grok-4.1-fast", Name: "Grok 4.1 Fast", Provider: "xAI", Description: "Fast Grok model"},
		{ID: "x-ai/grok-4", Name: "Grok 4", Provider: "xAI", Description: "Standard Grok model"},
		{ID: "deepseek/deepseek-r1", Name: "DeepSeek R1", Provider: "DeepSeek", Description: "Reasoning model with thinking process"},
		{ID: "nex-agi/deepseek-v3.1-nex-n1:free", Name: "DeepSeek V3.1 Nex-N1 (Free)", Provider: "Nex-AGI", Description: "Free enhanced DeepSeek model"},
	}
}

// Fetch retrieves the live OpenRouter catalog, falling back to the curated
// list when the fetch fails or comes back empty. Entries are sorted by name.
func Fetch(ctx context.Context, lister Lister) []Entry {
	raw, err := lister.ListModels(ctx)
	if err != nil || len(raw) == 0 {
		return DefaultCatalog()
	}

	entries := make([]Entry, 0, len(raw))
	for _, m := range raw {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		entries = append(entries, Entry{
			ID:          m.ID,
			Name:        name,
			Provider:    providerFromID(m.ID),
			Description: m.Description,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// providerFromID derives a display provider from an OpenRouter id prefix,
// e.g. "anthropic/claude" -> "Anthropic".
func providerFromID(id string) string {
	prefix, _, found := strings.Cut(id, "/")
	if !found || prefix == "" {
		return "Unknown"
	}
	return strings.ToUpper(prefix[:1]) + prefix[1:]
}
