package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cuygur/llm-council/internal/storage"
)

// Markdown renders a stored conversation as a Markdown document with
// per-stage sections and the aggregate ranking table.
func Markdown(conv *storage.Conversation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", orUnknown(conv.Title, "Conversation"))
	fmt.Fprintf(&b, "**Date:** %s\n", orUnknown(conv.CreatedAt, "Unknown"))
	fmt.Fprintf(&b, "**ID:** %s\n\n---\n\n", orUnknown(conv.ID, "Unknown"))

	for i, msg := range conv.Messages {
		switch msg.Role {
		case "user":
			fmt.Fprintf(&b, "## Message %d: User\n\n%s\n\n", i+1, msg.Content)
		case "assistant":
			fmt.Fprintf(&b, "## Message %d: Council Response\n\n", i+1)
			writeAssistant(&b, msg)
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

func writeAssistant(b *strings.Builder, msg storage.Message) {
	if len(msg.Stage1) > 0 {
		b.WriteString("### Stage 1: Individual Responses\n\n")
		for _, a := range msg.Stage1 {
			fmt.Fprintf(b, "#### %s\n\n%s\n\n", shortModel(a.Model), a.Response)
		}
	}

	if len(msg.Stage2) > 0 {
		b.WriteString("### Stage 2: Peer Rankings\n\n")
		if msg.Metadata != nil && len(msg.Metadata.AggregateRankings) > 0 {
			b.WriteString("#### Aggregate Rankings\n\n")
			b.WriteString("| Rank | Model | Avg Score | Votes |\n")
			b.WriteString("|------|-------|-----------|-------|\n")
			for i, agg := range msg.Metadata.AggregateRankings {
				fmt.Fprintf(b, "| %d | %s | %.2f | %d |\n", i+1, shortModel(agg.Model), agg.AverageRank, agg.Votes)
			}
			b.WriteString("\n")
		}
		for _, v := range msg.Stage2 {
			fmt.Fprintf(b, "#### %s's Evaluation\n\n%s\n\n", shortModel(v.Model), v.Ranking)
		}
	}

	if msg.Stage3 != nil {
		b.WriteString("### Stage 3: Final Answer\n\n")
		fmt.Fprintf(b, "**Chairman:** %s\n\n%s\n\n", shortModel(msg.Stage3.Model), msg.Stage3.Response)
	}
}

// JSON renders a stored conversation as JSON.
func JSON(conv *storage.Conversation, pretty bool) (string, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(conv, "", "  ")
	} else {
		data, err = json.Marshal(conv)
	}
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return string(data), nil
}

func shortModel(id string) string {
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

func orUnknown(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
