package council

import (
	"sort"

	"github.com/cuygur/llm-council/internal/pricing"
)

// AggregateRankings reduces all parsed verdicts into one league table. Each
// label at 1-indexed position p in a verdict contributes p to its model's
// position list; the table holds the arithmetic mean per model, rounded to
// 2 decimals, sorted ascending (lower is better). Models never ranked by
// anyone are omitted. Ties keep first-observed order across the verdicts,
// which is deterministic for a given verdict list.
func AggregateRankings(verdicts []RankingVerdict, labelToModel map[string]string) []AggregateEntry {
	positions := make(map[string][]int)
	var order []string // models in first-observed order

	for _, v := range verdicts {
		parsed := v.ParsedRanking
		if len(parsed) == 0 {
			parsed = ParseRanking(v.Ranking)
		}
		for i, label := range parsed {
			model, ok := labelToModel[label]
			if !ok {
				continue
			}
			if _, seen := positions[model]; !seen {
				order = append(order, model)
			}
			positions[model] = append(positions[model], i+1)
		}
	}

	entries := make([]AggregateEntry, 0, len(order))
	for _, model := range order {
		ps := positions[model]
		sum := 0
		for _, p := range ps {
			sum += p
		}
		entries = append(entries, AggregateEntry{
			Model:       model,
			AverageRank: pricing.Round(float64(sum)/float64(len(ps)), 2),
			Votes:       len(ps),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AverageRank < entries[j].AverageRank
	})
	return entries
}
