package council

import (
	"context"
	"time"

	"github.com/cuygur/llm-council/internal/openrouter"
)

// Gateway is the model-call boundary the pipeline runs against. Complete
// must never fail with a Go error: every failure mode is materialized on
// the returned Completion. A nil return means the backend produced nothing
// at all and the caller drops the slot.
type Gateway interface {
	Complete(ctx context.Context, model string, messages []openrouter.Message, timeout time.Duration) *openrouter.Completion
}

// Config is the immutable per-run council configuration. Callers build a
// fresh Config (or snapshot a shared one) for every run; the engine never
// mutates it, so concurrent runs with different rosters are safe.
type Config struct {
	CouncilModels  []string          `json:"council_models"`
	ChairmanModel  string            `json:"chairman_model"`
	AuxiliaryModel string            `json:"auxiliary_model,omitempty"`
	Personas       map[string]string `json:"model_personas,omitempty"`
	Mode           string            `json:"mode,omitempty"`
}

// DefaultAuxiliaryModel handles ranking extraction and title generation:
// fast and cheap is what matters there.
const DefaultAuxiliaryModel = "google/gemini-3-flash-preview"

// Auxiliary returns the configured auxiliary model or the default.
func (c Config) Auxiliary() string {
	if c.AuxiliaryModel != "" {
		return c.AuxiliaryModel
	}
	return DefaultAuxiliaryModel
}

// ModelAnswer is one council model's answer from Stage 1, or its revised
// answer after the rebuttal round. Rebuttals replace the original entry
// wholesale (with summed usage and cost) rather than editing it.
type ModelAnswer struct {
	Model            string           `json:"model"`
	Response         string           `json:"response"`
	Thinking         string           `json:"thinking,omitempty"`
	IsReasoningModel bool             `json:"is_reasoning_model"`
	Usage            openrouter.Usage `json:"usage"`
	Cost             float64          `json:"cost"`
	Persona          string           `json:"persona,omitempty"`
	Err              string           `json:"error,omitempty"`
	IsRebuttal       bool             `json:"is_rebuttal,omitempty"`
}

// RankingVerdict is one council model's Stage-2 ranking-and-critique
// response. ParsedRanking holds labels from the round's label set in the
// order the model ranked them, deduplicated; it is empty when every
// parsing layer failed.
type RankingVerdict struct {
	Model            string           `json:"model"`
	Ranking          string           `json:"ranking"`
	Thinking         string           `json:"thinking,omitempty"`
	IsReasoningModel bool             `json:"is_reasoning_model"`
	ParsedRanking    []string         `json:"parsed_ranking"`
	Usage            openrouter.Usage `json:"usage"`
	Cost             float64          `json:"cost"`
	Err              string           `json:"error,omitempty"`
}

// AggregateEntry is one row of the aggregate league table.
type AggregateEntry struct {
	Model       string  `json:"model"`
	AverageRank float64 `json:"average_rank"`
	Votes       int     `json:"rankings_count"`
}

// ChairmanResult is the Stage-3 synthesis. On total chairman failure it is
// a sentinel record with explanatory text and zero usage and cost.
type ChairmanResult struct {
	Model            string           `json:"model"`
	Response         string           `json:"response"`
	Thinking         string           `json:"thinking,omitempty"`
	IsReasoningModel bool             `json:"is_reasoning_model"`
	Usage            openrouter.Usage `json:"usage"`
	Cost             float64          `json:"cost"`
}

// TokenTotals accumulates run-wide token counts.
type TokenTotals struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

func (t *TokenTotals) add(u openrouter.Usage) {
	t.Prompt += u.PromptTokens
	t.Completion += u.CompletionTokens
	t.Total += u.TotalTokens
}

// RunMetadata is the derived per-run summary.
type RunMetadata struct {
	LabelToModel      map[string]string `json:"label_to_model"`
	AggregateRankings []AggregateEntry  `json:"aggregate_rankings"`
	TotalCost         float64           `json:"total_cost"`
	TotalTokens       TokenTotals       `json:"total_tokens"`
}

// RunResult is the complete outcome of one council run. Answers holds the
// post-rebuttal set (Stage 2.5), Verdicts the Stage-2 rankings.
type RunResult struct {
	Answers  []ModelAnswer    `json:"stage1"`
	Verdicts []RankingVerdict `json:"stage2"`
	Chairman ChairmanResult   `json:"stage3"`
	Metadata RunMetadata      `json:"metadata"`
}

// Streaming event types. Stage events are emitted in order through
// Engine.OnEvent; the terminal complete event and title_complete are
// emitted by the transport once persistence settles.
const (
	EventStage1Start    = "stage1_start"
	EventStage1Complete = "stage1_complete"
	EventStage2Start    = "stage2_start"
	EventStage2Complete = "stage2_complete"
	EventStage25Start   = "stage2_5_start"
	EventStage3Start    = "stage3_start"
	EventStage3Complete = "stage3_complete"
	EventTitleComplete  = "title_complete"
	EventComplete       = "complete"
	EventError          = "error"
)

// Event is one streaming progress notification. After the rebuttal round
// a second stage1_complete event carries the revised answer list; consumers
// must treat it as a full replacement of the first.
type Event struct {
	Type     string `json:"type"`
	Data     any    `json:"data,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
	Message  string `json:"message,omitempty"`
}
