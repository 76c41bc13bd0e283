package council

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cuygur/llm-council/internal/openrouter"
	"github.com/cuygur/llm-council/internal/pricing"
	"golang.org/x/sync/errgroup"
)

// ErrAllModelsFailed is returned when Stage 1 produces no successful
// answer; Stages 2, 2.5 and 3 are skipped in that case.
var ErrAllModelsFailed = errors.New("council: all council models failed to respond")

// failureResponse is the fixed terminal payload for a total Stage-1 failure.
const failureResponse = "All models failed to respond. Please try again."

// Engine runs one council round: independent generation, anonymized peer
// ranking, rebuttal, chairman synthesis. Each Engine call owns its run's
// state exclusively; a single Engine may serve concurrent runs because
// Run keeps everything on its own stack.
type Engine struct {
	gw  Gateway
	cfg Config

	// OnEvent, when set, receives the ordered streaming event sequence.
	OnEvent func(Event)
}

// NewEngine creates an Engine over the given gateway and run configuration.
func NewEngine(gw Gateway, cfg Config) *Engine {
	return &Engine{gw: gw, cfg: cfg}
}

func (e *Engine) emit(ev Event) {
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// Run executes the full pipeline over the conversation history. Stages are
// hard barriers: a stage's parallel calls all settle before the next stage
// starts. Per-model failures are carried inline on the affected records;
// only a total Stage-1 failure aborts the run, returning a result that
// holds the fixed error payload together with ErrAllModelsFailed.
func (e *Engine) Run(ctx context.Context, history []openrouter.Message) (*RunResult, error) {
	userQuery := ""
	if len(history) > 0 {
		userQuery = history[len(history)-1].Content
	}

	e.emit(Event{Type: EventStage1Start})
	answers := e.stage1(ctx, history)

	succeeded := false
	for _, a := range answers {
		if a.Err == "" {
			succeeded = true
			break
		}
	}
	if !succeeded {
		e.emit(Event{Type: EventError, Message: failureResponse})
		return &RunResult{
			Chairman: ChairmanResult{Model: "error", Response: failureResponse},
		}, ErrAllModelsFailed
	}
	e.emit(Event{Type: EventStage1Complete, Data: answers})

	e.emit(Event{Type: EventStage2Start})
	verdicts, labelToModel := e.stage2(ctx, userQuery, answers)
	aggregate := AggregateRankings(verdicts, labelToModel)
	e.emit(Event{Type: EventStage2Complete, Data: verdicts, Metadata: map[string]any{
		"label_to_model":     labelToModel,
		"aggregate_rankings": aggregate,
	}})

	e.emit(Event{Type: EventStage25Start})
	revised := e.rebuttal(ctx, userQuery, answers, verdicts, labelToModel)
	// Full replacement of the earlier stage1_complete payload.
	e.emit(Event{Type: EventStage1Complete, Data: revised})

	e.emit(Event{Type: EventStage3Start})
	chairman := e.stage3(ctx, userQuery, revised, verdicts)
	e.emit(Event{Type: EventStage3Complete, Data: chairman})

	result := &RunResult{
		Answers:  revised,
		Verdicts: verdicts,
		Chairman: chairman,
		Metadata: RunMetadata{
			LabelToModel:      labelToModel,
			AggregateRankings: aggregate,
		},
	}
	e.total(result)
	return result, nil
}

// stage1 fans the conversation out to every council model concurrently.
// The result order is the council roster order at call time, never the
// completion order: label assignment in Stage 2 depends on it. Models whose
// gateway slot comes back nil are dropped; errored completions are kept.
func (e *Engine) stage1(ctx context.Context, history []openrouter.Message) []ModelAnswer {
	comps := make([]*openrouter.Completion, len(e.cfg.CouncilModels))

	g, gctx := errgroup.WithContext(ctx)
	for i, model := range e.cfg.CouncilModels {
		i, model := i, model
		g.Go(func() error {
			msgs := history
			if persona, ok := e.cfg.Personas[model]; ok && persona != "" {
				msgs = append([]openrouter.Message{{Role: "system", Content: persona}}, history...)
			}
			comps[i] = e.gw.Complete(gctx, model, msgs, 0)
			return nil
		})
	}
	g.Wait()

	var answers []ModelAnswer
	for i, model := range e.cfg.CouncilModels {
		comp := comps[i]
		if comp == nil {
			continue
		}
		answers = append(answers, ModelAnswer{
			Model:            model,
			Response:         comp.Text,
			Thinking:         comp.Thinking,
			IsReasoningModel: comp.IsReasoning,
			Usage:            comp.Usage,
			Cost:             pricing.Cost(model, comp.Usage.PromptTokens, comp.Usage.CompletionTokens),
			Persona:          e.cfg.Personas[model],
			Err:              comp.Err,
		})
	}
	return answers
}

// stage2 assigns anonymous labels in Stage-1 order, asks every council
// model to rank the labeled answers and parses each verdict. The regex
// layers run first; when they recover fewer labels than there are answers
// (and the call itself did not error), the auxiliary model gets a shot and
// its result is adopted if it is at least as complete.
func (e *Engine) stage2(ctx context.Context, userQuery string, answers []ModelAnswer) ([]RankingVerdict, map[string]string) {
	labels := make([]string, len(answers))
	labelToModel := make(map[string]string, len(answers))
	for i := range answers {
		labels[i] = fmt.Sprintf("Response %c", rune('A'+i))
		labelToModel[labels[i]] = answers[i].Model
	}

	msgs := userMessages(rankingPrompt(userQuery, labels, answers))

	comps := make([]*openrouter.Completion, len(e.cfg.CouncilModels))
	g, gctx := errgroup.WithContext(ctx)
	for i, model := range e.cfg.CouncilModels {
		i, model := i, model
		g.Go(func() error {
			comps[i] = e.gw.Complete(gctx, model, msgs, 0)
			return nil
		})
	}
	g.Wait()

	var verdicts []RankingVerdict
	for i, model := range e.cfg.CouncilModels {
		comp := comps[i]
		if comp == nil {
			continue
		}
		raw := comp.Text
		parsed := sanitizeRanking(ParseRanking(raw), labels)
		if !comp.Failed() && len(parsed) < len(answers) {
			recovered := sanitizeRanking(extractRankingWithModel(ctx, e.gw, e.cfg.Auxiliary(), raw, labels), labels)
			if len(recovered) >= len(parsed) {
				parsed = recovered
			}
		}
		verdicts = append(verdicts, RankingVerdict{
			Model:            model,
			Ranking:          raw,
			Thinking:         comp.Thinking,
			IsReasoningModel: comp.IsReasoning,
			ParsedRanking:    parsed,
			Usage:            comp.Usage,
			Cost:             pricing.Cost(model, comp.Usage.PromptTokens, comp.Usage.CompletionTokens),
			Err:              comp.Err,
		})
	}
	return verdicts, labelToModel
}

// rebuttal forwards every reviewer's full verdict text to every author and
// lets each author optionally revise its answer. The whole verdict is
// forwarded rather than the sentences about that author's label; that is a
// deliberate simplification. Authors with zero incoming critiques pass
// through untouched. A failed or empty rebuttal keeps the original answer;
// a successful one replaces it with summed usage and cost and the new
// thinking segment.
func (e *Engine) rebuttal(ctx context.Context, userQuery string, answers []ModelAnswer, verdicts []RankingVerdict, labelToModel map[string]string) []ModelAnswer {
	modelToLabel := make(map[string]string, len(labelToModel))
	for label, model := range labelToModel {
		modelToLabel[model] = label
	}

	var critiqueBlocks []string
	for _, v := range verdicts {
		critiqueBlocks = append(critiqueBlocks, fmt.Sprintf("Critique from Peer (%s):\n%s", v.Model, v.Ranking))
	}
	critiques := strings.Join(critiqueBlocks, "\n\n---\n\n")

	comps := make([]*openrouter.Completion, len(answers))
	if critiques != "" {
		g, gctx := errgroup.WithContext(ctx)
		for i, a := range answers {
			i, a := i, a
			label := modelToLabel[a.Model]
			if label == "" {
				label = "Unknown"
			}
			msgs := userMessages(rebuttalPrompt(userQuery, label, a.Response, critiques))
			if persona, ok := e.cfg.Personas[a.Model]; ok && persona != "" {
				msgs = append([]openrouter.Message{{Role: "system", Content: persona}}, msgs...)
			}
			g.Go(func() error {
				comps[i] = e.gw.Complete(gctx, a.Model, msgs, 0)
				return nil
			})
		}
		g.Wait()
	}

	revised := make([]ModelAnswer, 0, len(answers))
	for i, a := range answers {
		comp := comps[i]
		if comp == nil || comp.Failed() || comp.Text == "" {
			revised = append(revised, a)
			continue
		}
		revised = append(revised, ModelAnswer{
			Model:            a.Model,
			Response:         comp.Text,
			Thinking:         comp.Thinking,
			IsReasoningModel: a.IsReasoningModel,
			Usage:            a.Usage.Add(comp.Usage),
			Cost:             a.Cost + pricing.Cost(a.Model, comp.Usage.PromptTokens, comp.Usage.CompletionTokens),
			Persona:          a.Persona,
			IsRebuttal:       true,
		})
	}
	return revised
}

// stage3 sends the revised answers and all raw verdicts to the chairman.
// Total failure produces a sentinel result instead of failing the run.
func (e *Engine) stage3(ctx context.Context, userQuery string, answers []ModelAnswer, verdicts []RankingVerdict) ChairmanResult {
	comp := e.gw.Complete(ctx, e.cfg.ChairmanModel, userMessages(chairmanPrompt(userQuery, answers, verdicts)), 0)
	if comp == nil {
		return ChairmanResult{
			Model:    e.cfg.ChairmanModel,
			Response: "Error: Unable to generate final synthesis.",
		}
	}
	return ChairmanResult{
		Model:            e.cfg.ChairmanModel,
		Response:         comp.Text,
		Thinking:         comp.Thinking,
		IsReasoningModel: comp.IsReasoning,
		Usage:            comp.Usage,
		Cost:             pricing.Cost(e.cfg.ChairmanModel, comp.Usage.PromptTokens, comp.Usage.CompletionTokens),
	}
}

// total folds the post-rebuttal answers, every verdict and the chairman
// result into the run totals. The run total is rounded to 4 decimals;
// individual call costs were already rounded to 6.
func (e *Engine) total(r *RunResult) {
	var cost float64
	var tokens TokenTotals
	for _, a := range r.Answers {
		cost += a.Cost
		tokens.add(a.Usage)
	}
	for _, v := range r.Verdicts {
		cost += v.Cost
		tokens.add(v.Usage)
	}
	cost += r.Chairman.Cost
	tokens.add(r.Chairman.Usage)

	r.Metadata.TotalCost = pricing.Round(cost, 4)
	r.Metadata.TotalTokens = tokens
}

func userMessages(content string) []openrouter.Message {
	return []openrouter.Message{{Role: "user", Content: content}}
}
