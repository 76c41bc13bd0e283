package pricing

import (
	"fmt"
	"math"
)

// ModelPrice holds per-million-token USD prices for one model.
type ModelPrice struct {
	Prompt     float64
	Completion float64
}

// prices are OpenRouter list prices per million tokens.
var prices = map[string]ModelPrice{
	"openai/gpt-5.2":                 {Prompt: 10.00, Completion: 30.00},
	"anthropic/claude-sonnet-4.5":    {Prompt: 3.00, Completion: 15.00},
	"anthropic/claude-opus-4.5":      {Prompt: 15.00, Completion: 75.00},
	"google/gemini-3-pro-preview":    {Prompt: 3.50, Completion: 10.50},
	"google/gemini-3-flash-preview":  {Prompt: 0.15, Completion: 0.60},
	"x-ai/grok-4.1-fast":             {Prompt: 0.50, Completion: 1.50},
	"x-ai/grok-4":                    {Prompt: 5.00, Completion: 15.00},
	"deepseek/deepseek-r1":           {Prompt: 0.55, Completion: 2.19},
	"nex-agi/deepseek-v3.1-nex-n1:free": {Prompt: 0, Completion: 0},
}

// defaultPrice is used for models missing from the table.
var defaultPrice = ModelPrice{Prompt: 1.00, Completion: 3.00}

// ForModel returns the price entry for model, falling back to a default
// tier for unknown ids.
func ForModel(model string) ModelPrice {
	if p, ok := prices[model]; ok {
		return p
	}
	return defaultPrice
}

// Cost computes the USD cost of one call, rounded to 6 decimals.
func Cost(model string, promptTokens, completionTokens int) float64 {
	p := ForModel(model)
	cost := float64(promptTokens)/1e6*p.Prompt + float64(completionTokens)/1e6*p.Completion
	return Round(cost, 6)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}

// EstimateTokens approximates the token count of text. Rule of thumb:
// about 4 characters per token for English text.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Estimate holds a pre-query cost estimate across a set of models.
type Estimate struct {
	Total          float64            `json:"total"`
	PromptTokens   int                `json:"prompt_tokens"`
	ResponseTokens int                `json:"estimated_response_tokens"`
	PerModel       map[string]float64 `json:"models"`
}

// EstimateQuery estimates the cost of sending prompt to every model,
// assuming responseTokens completion tokens each.
func EstimateQuery(models []string, prompt string, responseTokens int) Estimate {
	promptTokens := EstimateTokens(prompt)
	est := Estimate{
		PromptTokens:   promptTokens,
		ResponseTokens: responseTokens,
		PerModel:       make(map[string]float64, len(models)),
	}
	for _, m := range models {
		c := Cost(m, promptTokens, responseTokens)
		est.PerModel[m] = c
		est.Total += c
	}
	est.Total = Round(est.Total, 4)
	return est
}

// Format renders a cost for display, scaling precision with magnitude.
func Format(cost float64) string {
	switch {
	case cost == 0:
		return "$0.00"
	case cost < 0.01:
		return fmt.Sprintf("$%.4f", cost)
	case cost < 1:
		return fmt.Sprintf("$%.3f", cost)
	default:
		return fmt.Sprintf("$%.2f", cost)
	}
}
