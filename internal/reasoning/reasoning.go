package reasoning

import (
	"regexp"
	"strings"
	"time"
)

// Timeouts for gateway calls. Extended-reasoning models routinely take
// minutes to answer, so they get a longer budget.
const (
	StandardTimeout = 120 * time.Second
	ExtendedTimeout = 300 * time.Second
)

// knownReasoningModels are exact OpenRouter ids that use extended reasoning.
var knownReasoningModels = map[string]bool{
	"openai/o1":                      true,
	"openai/o1-preview":              true,
	"openai/o1-mini":                 true,
	"openai/o3":                      true,
	"openai/o3-mini":                 true,
	"deepseek/deepseek-r1":           true,
	"deepseek/deepseek-reasoner":     true,
	"nex-agi/deepseek-v3.1-nex-n1:free": true,
}

var reasoningKeywords = []string{"o1", "o3", "deepseek-r", "reasoner", "reasoning"}

// IsReasoningModel reports whether model uses extended reasoning.
// Versioned ids are matched by keyword when not in the known set.
func IsReasoningModel(model string) bool {
	if knownReasoningModels[model] {
		return true
	}
	lower := strings.ToLower(model)
	for _, kw := range reasoningKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Timeout returns the gateway call timeout appropriate for model.
func Timeout(model string) time.Duration {
	if IsReasoningModel(model) {
		return ExtendedTimeout
	}
	return StandardTimeout
}

var thinkTagRes = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<think>(.*?)</think>(.*)`),
	regexp.MustCompile(`(?s)<reasoning>(.*?)</reasoning>(.*)`),
	regexp.MustCompile(`(?s)<thought>(.*?)</thought>(.*)`),
}

// SplitThinking separates a reasoning model's thinking segment from its
// final answer. Models emit <think>, <reasoning> or <thought> tag pairs;
// content without any tags is returned whole as the answer.
func SplitThinking(content string) (thinking, answer string) {
	if content == "" {
		return "", ""
	}
	for _, re := range thinkTagRes {
		if m := re.FindStringSubmatch(content); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		}
	}
	return "", content
}
