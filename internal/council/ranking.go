package council

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
)

// rankingMarker is the literal output contract the ranking prompt demands.
// Matching is case-sensitive; models that shout it differently fall through
// to the looser layers.
const rankingMarker = "FINAL RANKING:"

var (
	numberedLabelRe = regexp.MustCompile(`(?i)\d+[.)]\s*Response\s+([A-Z])`)
	anyLabelRe      = regexp.MustCompile(`(?i)Response\s+([A-Z])`)
	bareLetterRe    = regexp.MustCompile(`\d+[.)]\s*([A-Z])\b`)
)

// ParseRanking extracts an ordered label list from a model's free-text
// ranking verdict. Pure regex layers, tried in priority order; the first
// layer producing a non-empty result wins. Returns nil when nothing
// matched; the model-assisted fallback lives in the engine, not here.
func ParseRanking(text string) []string {
	// Bold markers break the numbered-line patterns.
	text = strings.ReplaceAll(text, "**", "")

	section := text
	if idx := strings.LastIndex(text, rankingMarker); idx >= 0 {
		section = text[idx+len(rankingMarker):]
	}

	// Layer 1: numbered "1. Response A" lines after the marker.
	if ms := numberedLabelRe.FindAllStringSubmatch(section, -1); len(ms) > 0 {
		labels := make([]string, 0, len(ms))
		for _, m := range ms {
			labels = append(labels, canonicalLabel(m[1]))
		}
		return labels
	}

	// Layer 2: any "Response A" mention, first-seen order, deduplicated.
	if ms := anyLabelRe.FindAllStringSubmatch(section, -1); len(ms) > 0 {
		return dedupe(mapLabels(ms))
	}

	// Layer 3: bare letters on numbered lines, only inside a marker section.
	if strings.Contains(text, rankingMarker) {
		if ms := bareLetterRe.FindAllStringSubmatch(section, -1); len(ms) > 0 {
			labels := make([]string, 0, len(ms))
			for _, m := range ms {
				labels = append(labels, "Response "+m[1])
			}
			return labels
		}
	}

	return nil
}

func canonicalLabel(letter string) string {
	return "Response " + strings.ToUpper(letter)
}

func mapLabels(matches [][]string) []string {
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		labels = append(labels, canonicalLabel(m[1]))
	}
	return labels
}

func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// sanitizeRanking enforces the verdict invariant: no duplicates, only
// labels from the round's label set, original order preserved.
func sanitizeRanking(parsed, labels []string) []string {
	valid := make(map[string]bool, len(labels))
	for _, l := range labels {
		valid[l] = true
	}
	seen := make(map[string]bool, len(parsed))
	var out []string
	for _, l := range parsed {
		if valid[l] && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// extractRankingWithModel asks the auxiliary model to pull the ranking out
// of a verdict the regex layers could not handle. The labels it mentions
// are ordered by their first occurrence in its reply.
func extractRankingWithModel(ctx context.Context, gw Gateway, auxModel, rankingText string, labels []string) []string {
	prompt := extractionPrompt(rankingText, labels)
	comp := gw.Complete(ctx, auxModel, userMessages(prompt), 20*time.Second)
	if comp == nil || comp.Failed() {
		return nil
	}
	content := strings.TrimSpace(comp.Text)

	type hit struct {
		label string
		pos   int
	}
	var hits []hit
	for _, label := range labels {
		if pos := strings.Index(content, label); pos >= 0 {
			hits = append(hits, hit{label, pos})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.label)
	}
	return out
}
