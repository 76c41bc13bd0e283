package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cuygur/llm-council/internal/council"
	"github.com/cuygur/llm-council/internal/openrouter"
)

// Modes. Standard runs the council without personas; roleplay asks an
// auxiliary model to assign each member a distinct perspective first.
const (
	ModeStandard = "standard"
	ModeRoleplay = "roleplay"
)

const maxResolveAttempts = 3

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Resolver derives model personas for a run.
type Resolver struct {
	gw    council.Gateway
	model string
}

// NewResolver creates a Resolver that uses model for role assignment.
func NewResolver(gw council.Gateway, model string) *Resolver {
	return &Resolver{gw: gw, model: model}
}

// Resolve returns the model -> system-prompt mapping for a run. The
// standard mode (and any unknown mode) yields an empty mapping without a
// model call. Roleplay asks the auxiliary model for a strict JSON object
// mapping every council model id to a short persona; when all attempts
// fail the run simply proceeds without personas.
func (r *Resolver) Resolve(ctx context.Context, mode, query string, councilModels []string, chairmanModel string) map[string]string {
	if mode != ModeRoleplay || len(councilModels) == 0 {
		return map[string]string{}
	}

	system := openrouter.Message{
		Role: "system",
		Content: `You are a casting director for a council of AI models. Given a user question and a list of model ids, assign each model a short persona (a one-sentence system prompt giving it a distinct perspective or role relevant to the question). Return ONLY valid JSON: an object whose keys are the exact model ids and whose values are the persona strings. Do NOT include any other text, explanation, or markdown formatting.`,
	}
	user := openrouter.Message{
		Role: "user",
		Content: fmt.Sprintf("Question: %s\n\nCouncil models:\n%s\n\nThe chairman (%s) gets no persona.",
			query, strings.Join(councilModels, "\n"), chairmanModel),
	}

	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		if ctx.Err() != nil {
			return map[string]string{}
		}

		msgs := []openrouter.Message{system, user}
		if attempt > 0 {
			msgs = append(msgs, openrouter.Message{
				Role:    "user",
				Content: "Your previous response was not valid JSON. Return ONLY a JSON object, no markdown, no explanation.",
			})
		}

		comp := r.gw.Complete(ctx, r.model, msgs, 30*time.Second)
		if comp == nil || comp.Failed() {
			continue
		}
		if personas, ok := parsePersonaJSON(comp.Text); ok {
			return restrict(personas, councilModels)
		}
	}

	return map[string]string{}
}

// parsePersonaJSON tries to extract a string-to-string JSON object from
// model output: direct parse, then a fenced code block, then the outermost
// brace pair.
func parsePersonaJSON(raw string) (map[string]string, bool) {
	var result map[string]string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &result); err == nil {
		return result, true
	}

	if matches := codeBlockRe.FindStringSubmatch(raw); len(matches) > 1 {
		if err := json.Unmarshal([]byte(strings.TrimSpace(matches[1])), &result); err == nil {
			return result, true
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err == nil {
			return result, true
		}
	}

	return nil, false
}

// restrict drops assignments for models outside the council roster.
func restrict(personas map[string]string, councilModels []string) map[string]string {
	out := make(map[string]string, len(personas))
	for _, m := range councilModels {
		if p, ok := personas[m]; ok && p != "" {
			out[m] = p
		}
	}
	return out
}
