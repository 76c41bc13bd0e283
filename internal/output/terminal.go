package output

import (
	"fmt"
	"strings"

	"github.com/cuygur/llm-council/internal/council"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// Colorize wraps s with an ANSI color code and reset.
func Colorize(color, s string) string { return color + s + ansiReset }

// Bold wraps s with ANSI bold and reset.
func Bold(s string) string { return ansiBold + s + ansiReset }

// PrintStage prints a stage transition banner.
func PrintStage(name string) {
	fmt.Printf("\n%s\n\n", Colorize(ansiBold+ansiCyan, "=== "+name+" ==="))
}

// PrintAnswer prints one council model's answer.
func PrintAnswer(a council.ModelAnswer) {
	header := shortModel(a.Model)
	if a.IsRebuttal {
		header += " (revised)"
	}
	if a.Err != "" {
		fmt.Printf("%s %s\n", Bold(Colorize(ansiRed, header)), a.Err)
		return
	}
	fmt.Printf("%s\n%s\n\n", Bold(header), a.Response)
}

// PrintVerdict prints one model's ranking verdict.
func PrintVerdict(v council.RankingVerdict) {
	fmt.Printf("%s\n%s\n\n", Bold(shortModel(v.Model)+"'s evaluation"), v.Ranking)
}

// PrintAggregate prints the aggregate ranking table.
func PrintAggregate(entries []council.AggregateEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Printf("%s\n", Bold("Aggregate Rankings"))
	for i, e := range entries {
		fmt.Printf("%s %s  avg %.2f  (%d votes)\n",
			Colorize(ansiYellow, fmt.Sprintf("%d.", i+1)),
			shortModel(e.Model),
			e.AverageRank,
			e.Votes,
		)
	}
	fmt.Println()
}

// PrintChairman prints the final synthesis.
func PrintChairman(c council.ChairmanResult) {
	fmt.Printf("%s\n%s\n\n", Bold(Colorize(ansiGreen, "Chairman ("+shortModel(c.Model)+")")), c.Response)
}

// PrintCost prints the run's cost and token totals.
func PrintCost(meta council.RunMetadata) {
	fmt.Printf("%s $%.4f  (%d tokens)\n",
		Colorize(ansiYellow, "Total cost:"),
		meta.TotalCost,
		meta.TotalTokens.Total,
	)
}

func shortModel(id string) string {
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		return id[idx+1:]
	}
	return id
}
