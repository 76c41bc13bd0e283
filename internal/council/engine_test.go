package council

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuygur/llm-council/internal/openrouter"
	"github.com/google/go-cmp/cmp"
)

// callKinds derived from each prompt's fixed opening line.
const (
	kindAnswer   = "answer"
	kindRank     = "rank"
	kindRebuttal = "rebuttal"
	kindChairman = "chairman"
	kindExtract  = "extract"
	kindTitle    = "title"
)

func classify(msgs []openrouter.Message) string {
	if len(msgs) == 0 {
		return kindAnswer
	}
	content := msgs[len(msgs)-1].Content
	switch {
	case strings.HasPrefix(content, "You are evaluating"):
		return kindRank
	case strings.HasPrefix(content, "You are a data extraction"):
		return kindExtract
	case strings.HasPrefix(content, "You previously answered"):
		return kindRebuttal
	case strings.HasPrefix(content, "You are the Chairman"):
		return kindChairman
	case strings.HasPrefix(content, "Generate a very short title"):
		return kindTitle
	default:
		return kindAnswer
	}
}

type gwCall struct {
	Model string
	Kind  string
	Msgs  []openrouter.Message
}

// mockGateway routes calls through a scripted handler and records them.
type mockGateway struct {
	mu      sync.Mutex
	calls   []gwCall
	handler func(kind, model string, msgs []openrouter.Message) *openrouter.Completion
}

func (m *mockGateway) Complete(_ context.Context, model string, msgs []openrouter.Message, _ time.Duration) *openrouter.Completion {
	kind := classify(msgs)
	m.mu.Lock()
	m.calls = append(m.calls, gwCall{Model: model, Kind: kind, Msgs: msgs})
	m.mu.Unlock()
	return m.handler(kind, model, msgs)
}

func (m *mockGateway) countKind(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func ok(model, text string) *openrouter.Completion {
	return &openrouter.Completion{
		Model: model,
		Text:  text,
		Usage: openrouter.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

func failed(model, reason string) *openrouter.Completion {
	return &openrouter.Completion{Model: model, Text: "Error: " + reason, Err: reason}
}

func history(query string) []openrouter.Message {
	return []openrouter.Message{{Role: "user", Content: query}}
}

// happyHandler answers every stage successfully with unanimous rankings.
func happyHandler(ranking string) func(kind, model string, msgs []openrouter.Message) *openrouter.Completion {
	return func(kind, model string, _ []openrouter.Message) *openrouter.Completion {
		switch kind {
		case kindRank:
			return ok(model, ranking)
		case kindRebuttal:
			return ok(model, "revised answer from "+model)
		case kindChairman:
			return ok(model, "the synthesis")
		default:
			return ok(model, "answer from "+model)
		}
	}
}

func TestRunHappyPath(t *testing.T) {
	gw := &mockGateway{handler: happyHandler("FINAL RANKING:\n1. Response C\n2. Response A\n3. Response B")}
	cfg := Config{
		CouncilModels: []string{"m/one", "m/two", "m/three"},
		ChairmanModel: "m/chair",
	}
	e := NewEngine(gw, cfg)

	result, err := e.Run(context.Background(), history("what is up?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(result.Answers))
	}
	for i, model := range cfg.CouncilModels {
		if result.Answers[i].Model != model {
			t.Errorf("answer %d: expected model %s, got %s", i, model, result.Answers[i].Model)
		}
		if !result.Answers[i].IsRebuttal {
			t.Errorf("answer %d: expected revised answer", i)
		}
		if result.Answers[i].Response != "revised answer from "+model {
			t.Errorf("answer %d: unexpected response %q", i, result.Answers[i].Response)
		}
	}

	// Labels form a bijection in stage-1 order.
	wantLabels := map[string]string{
		"Response A": "m/one",
		"Response B": "m/two",
		"Response C": "m/three",
	}
	if diff := cmp.Diff(wantLabels, result.Metadata.LabelToModel); diff != "" {
		t.Errorf("label map mismatch (-want +got):\n%s", diff)
	}

	// Unanimous [C, A, B] ranking.
	wantAggregate := []AggregateEntry{
		{Model: "m/three", AverageRank: 1.0, Votes: 3},
		{Model: "m/one", AverageRank: 2.0, Votes: 3},
		{Model: "m/two", AverageRank: 3.0, Votes: 3},
	}
	if diff := cmp.Diff(wantAggregate, result.Metadata.AggregateRankings); diff != "" {
		t.Errorf("aggregate mismatch (-want +got):\n%s", diff)
	}

	if result.Chairman.Response != "the synthesis" {
		t.Errorf("unexpected chairman response %q", result.Chairman.Response)
	}

	// Every call used Usage{10,20,30} and unknown-model pricing ($1/$3 per
	// million): 0.00007 per call. Answers carry two calls each after the
	// rebuttal merge; 3 verdicts and the chairman carry one each.
	if result.Metadata.TotalCost != 0.0007 {
		t.Errorf("total cost = %v, want 0.0007", result.Metadata.TotalCost)
	}
	wantTokens := TokenTotals{Prompt: 100, Completion: 200, Total: 300}
	if result.Metadata.TotalTokens != wantTokens {
		t.Errorf("total tokens = %+v, want %+v", result.Metadata.TotalTokens, wantTokens)
	}

	// Regex handled every verdict; the auxiliary extractor must stay idle.
	if n := gw.countKind(kindExtract); n != 0 {
		t.Errorf("expected no extraction calls, got %d", n)
	}
}

func TestStage1OrderIndependentOfCompletionOrder(t *testing.T) {
	base := happyHandler("FINAL RANKING:\n1. Response A\n2. Response B\n3. Response C")
	gw := &mockGateway{handler: func(kind, model string, msgs []openrouter.Message) *openrouter.Completion {
		if kind == kindAnswer && model == "m/slow" {
			time.Sleep(50 * time.Millisecond)
		}
		return base(kind, model, msgs)
	}}
	cfg := Config{
		CouncilModels: []string{"m/slow", "m/fast", "m/faster"},
		ChairmanModel: "m/chair",
	}

	result, err := NewEngine(gw, cfg).Run(context.Background(), history("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The slowest model still owns Response A.
	if result.Metadata.LabelToModel["Response A"] != "m/slow" {
		t.Errorf("expected Response A -> m/slow, got %q", result.Metadata.LabelToModel["Response A"])
	}
}

func TestRunTerminalFailureSkipsLaterStages(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, _ []openrouter.Message) *openrouter.Completion {
		return failed(model, "connection refused")
	}}
	cfg := Config{CouncilModels: []string{"m/one", "m/two"}, ChairmanModel: "m/chair"}

	result, err := NewEngine(gw, cfg).Run(context.Background(), history("q"))
	if err != ErrAllModelsFailed {
		t.Fatalf("expected ErrAllModelsFailed, got %v", err)
	}
	if result.Chairman.Model != "error" {
		t.Errorf("expected sentinel chairman model, got %q", result.Chairman.Model)
	}
	if result.Chairman.Response != "All models failed to respond. Please try again." {
		t.Errorf("unexpected terminal payload %q", result.Chairman.Response)
	}
	for _, kind := range []string{kindRank, kindRebuttal, kindChairman} {
		if n := gw.countKind(kind); n != 0 {
			t.Errorf("expected no %s calls after terminal failure, got %d", kind, n)
		}
	}
}

func TestRunKeepsErroredAnswersWhenOthersSucceed(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, msgs []openrouter.Message) *openrouter.Completion {
		if kind == kindAnswer && model == "m/broken" {
			return failed(model, "timeout")
		}
		return happyHandler("FINAL RANKING:\n1. Response A\n2. Response B")(kind, model, msgs)
	}}
	cfg := Config{CouncilModels: []string{"m/good", "m/broken"}, ChairmanModel: "m/chair"}

	result, err := NewEngine(gw, cfg).Run(context.Background(), history("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(result.Answers))
	}
	var broken *ModelAnswer
	for i := range result.Answers {
		if result.Answers[i].Model == "m/broken" {
			broken = &result.Answers[i]
		}
	}
	if broken == nil {
		t.Fatal("errored answer was dropped")
	}
	if broken.Err == "" {
		t.Error("expected error recorded on broken answer")
	}
}

func TestStage1DropsNilCompletions(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, msgs []openrouter.Message) *openrouter.Completion {
		if kind == kindAnswer && model == "m/void" {
			return nil
		}
		return happyHandler("FINAL RANKING:\n1. Response A\n2. Response B")(kind, model, msgs)
	}}
	cfg := Config{CouncilModels: []string{"m/one", "m/void", "m/two"}, ChairmanModel: "m/chair"}

	result, err := NewEngine(gw, cfg).Run(context.Background(), history("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Answers) != 2 {
		t.Fatalf("expected 2 answers after dropping nil, got %d", len(result.Answers))
	}
	// Labels compact over the surviving answers.
	want := map[string]string{"Response A": "m/one", "Response B": "m/two"}
	if diff := cmp.Diff(want, result.Metadata.LabelToModel); diff != "" {
		t.Errorf("label map mismatch (-want +got):\n%s", diff)
	}
}

func TestStage1PrependsPersona(t *testing.T) {
	gw := &mockGateway{handler: happyHandler("FINAL RANKING:\n1. Response A\n2. Response B")}
	cfg := Config{
		CouncilModels: []string{"m/one", "m/two"},
		ChairmanModel: "m/chair",
		Personas:      map[string]string{"m/one": "You are a skeptic."},
	}

	if _, err := NewEngine(gw, cfg).Run(context.Background(), history("q")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	for _, c := range gw.calls {
		hasPersona := len(c.Msgs) > 0 && c.Msgs[0].Role == "system" && c.Msgs[0].Content == "You are a skeptic."
		switch {
		case c.Kind == kindAnswer && c.Model == "m/one":
			if !hasPersona {
				t.Error("stage 1 call for m/one is missing its persona")
			}
		case c.Kind == kindAnswer && c.Model == "m/two":
			if hasPersona {
				t.Error("stage 1 call for m/two must not carry m/one's persona")
			}
		case c.Kind == kindRebuttal && c.Model == "m/one":
			if !hasPersona {
				t.Error("rebuttal call for m/one must reapply its persona")
			}
		case c.Kind == kindRank:
			if hasPersona {
				t.Error("ranking calls are anonymized and carry no persona")
			}
		}
	}
}

func TestRebuttalPassThroughWithoutCritiques(t *testing.T) {
	gw := &mockGateway{handler: happyHandler("")}
	e := NewEngine(gw, Config{CouncilModels: []string{"m/one"}})

	original := []ModelAnswer{{Model: "m/one", Response: "original", Cost: 0.5}}
	revised := e.rebuttal(context.Background(), "q", original, nil, map[string]string{"Response A": "m/one"})

	if diff := cmp.Diff(original, revised); diff != "" {
		t.Errorf("expected unchanged pass-through (-want +got):\n%s", diff)
	}
	if len(gw.calls) != 0 {
		t.Errorf("expected no rebuttal calls, got %d", len(gw.calls))
	}
}

func TestRebuttalMergeSumsUsageAndCost(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, _ []openrouter.Message) *openrouter.Completion {
		if model == "m/stubborn" {
			return failed(model, "refused")
		}
		return ok(model, "better answer")
	}}
	e := NewEngine(gw, Config{CouncilModels: []string{"m/open", "m/stubborn"}})

	answers := []ModelAnswer{
		{Model: "m/open", Response: "first try", Usage: openrouter.Usage{PromptTokens: 100, CompletionTokens: 200, TotalTokens: 300}, Cost: 0.001},
		{Model: "m/stubborn", Response: "unchanged", Usage: openrouter.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}, Cost: 0.002},
	}
	verdicts := []RankingVerdict{{Model: "m/open", Ranking: "critique text"}}
	labelToModel := map[string]string{"Response A": "m/open", "Response B": "m/stubborn"}

	revised := e.rebuttal(context.Background(), "q", answers, verdicts, labelToModel)
	if len(revised) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(revised))
	}

	open := revised[0]
	if !open.IsRebuttal {
		t.Error("expected m/open answer to be revised")
	}
	if open.Response != "better answer" {
		t.Errorf("unexpected revised response %q", open.Response)
	}
	wantUsage := openrouter.Usage{PromptTokens: 110, CompletionTokens: 220, TotalTokens: 330}
	if open.Usage != wantUsage {
		t.Errorf("usage = %+v, want %+v", open.Usage, wantUsage)
	}
	// 0.001 original + (10*$1 + 20*$3)/1e6 for the rebuttal call.
	if open.Cost != 0.001+0.00007 {
		t.Errorf("cost = %v, want %v", open.Cost, 0.001+0.00007)
	}

	stubborn := revised[1]
	if stubborn.IsRebuttal {
		t.Error("failed rebuttal must keep the original answer")
	}
	if stubborn.Response != "unchanged" || stubborn.Cost != 0.002 {
		t.Errorf("original answer mutated: %+v", stubborn)
	}
}

func TestStage2FallsBackToModelExtraction(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, msgs []openrouter.Message) *openrouter.Completion {
		switch kind {
		case kindRank:
			return ok(model, "Both answers have merit but one stands out clearly.")
		case kindExtract:
			return ok(model, "Response B, Response A")
		default:
			return happyHandler("")(kind, model, msgs)
		}
	}}
	cfg := Config{CouncilModels: []string{"m/one", "m/two"}, ChairmanModel: "m/chair"}

	result, err := NewEngine(gw, cfg).Run(context.Background(), history("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range result.Verdicts {
		want := []string{"Response B", "Response A"}
		if diff := cmp.Diff(want, v.ParsedRanking); diff != "" {
			t.Errorf("verdict %s parsed ranking mismatch (-want +got):\n%s", v.Model, diff)
		}
	}
	if n := gw.countKind(kindExtract); n != 2 {
		t.Errorf("expected 2 extraction calls, got %d", n)
	}
	// Extraction runs on the configured auxiliary model.
	gw.mu.Lock()
	defer gw.mu.Unlock()
	for _, c := range gw.calls {
		if c.Kind == kindExtract && c.Model != DefaultAuxiliaryModel {
			t.Errorf("extraction used %q, want %q", c.Model, DefaultAuxiliaryModel)
		}
	}
}

func TestStage2SkipsExtractionForErroredVerdicts(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, msgs []openrouter.Message) *openrouter.Completion {
		if kind == kindRank {
			return failed(model, "rate limited")
		}
		return happyHandler("")(kind, model, msgs)
	}}
	cfg := Config{CouncilModels: []string{"m/one"}, ChairmanModel: "m/chair"}

	result, err := NewEngine(gw, cfg).Run(context.Background(), history("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := gw.countKind(kindExtract); n != 0 {
		t.Errorf("errored verdicts must not trigger extraction, got %d calls", n)
	}
	if len(result.Verdicts) != 1 || result.Verdicts[0].Err == "" {
		t.Fatalf("expected one errored verdict, got %+v", result.Verdicts)
	}
}

func TestChairmanSentinelOnTotalFailure(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, msgs []openrouter.Message) *openrouter.Completion {
		if kind == kindChairman {
			return nil
		}
		return happyHandler("FINAL RANKING:\n1. Response A")(kind, model, msgs)
	}}
	cfg := Config{CouncilModels: []string{"m/one"}, ChairmanModel: "m/chair"}

	result, err := NewEngine(gw, cfg).Run(context.Background(), history("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Chairman.Response != "Error: Unable to generate final synthesis." {
		t.Errorf("unexpected sentinel %q", result.Chairman.Response)
	}
	if result.Chairman.Cost != 0 || result.Chairman.Usage != (openrouter.Usage{}) {
		t.Errorf("sentinel must carry zero usage and cost, got %+v", result.Chairman)
	}
}

func TestRunEmitsOrderedEvents(t *testing.T) {
	gw := &mockGateway{handler: happyHandler("FINAL RANKING:\n1. Response A\n2. Response B")}
	cfg := Config{CouncilModels: []string{"m/one", "m/two"}, ChairmanModel: "m/chair"}
	e := NewEngine(gw, cfg)

	var events []Event
	e.OnEvent = func(ev Event) { events = append(events, ev) }

	if _, err := e.Run(context.Background(), history("q")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []string{
		EventStage1Start, EventStage1Complete,
		EventStage2Start, EventStage2Complete,
		EventStage25Start, EventStage1Complete,
		EventStage3Start, EventStage3Complete,
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}

	// The second stage1_complete replaces the first with revised answers.
	second := events[5].Data.([]ModelAnswer)
	for _, a := range second {
		if !a.IsRebuttal {
			t.Errorf("replacement payload should hold revised answers, got %+v", a)
		}
	}
}
