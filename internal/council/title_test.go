package council

import (
	"context"
	"strings"
	"testing"

	"github.com/cuygur/llm-council/internal/openrouter"
)

func TestGenerateTitle(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, _ []openrouter.Message) *openrouter.Completion {
		return ok(model, "  \"Meaning Of Life\"  ")
	}}
	got := GenerateTitle(context.Background(), gw, DefaultAuxiliaryModel, "what is the meaning of life?")
	if got != "Meaning Of Life" {
		t.Errorf("title = %q, want %q", got, "Meaning Of Life")
	}
}

func TestGenerateTitleTruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("x", 80)
	gw := &mockGateway{handler: func(kind, model string, _ []openrouter.Message) *openrouter.Completion {
		return ok(model, long)
	}}
	got := GenerateTitle(context.Background(), gw, DefaultAuxiliaryModel, "q")
	if len(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected 50-char truncated title, got %q (len %d)", got, len(got))
	}
}

func TestGenerateTitleFallback(t *testing.T) {
	gw := &mockGateway{handler: func(kind, model string, _ []openrouter.Message) *openrouter.Completion {
		return failed(model, "unreachable")
	}}
	if got := GenerateTitle(context.Background(), gw, DefaultAuxiliaryModel, "q"); got != "New Conversation" {
		t.Errorf("expected fallback title, got %q", got)
	}

	gw = &mockGateway{handler: func(kind, model string, _ []openrouter.Message) *openrouter.Completion {
		return nil
	}}
	if got := GenerateTitle(context.Background(), gw, DefaultAuxiliaryModel, "q"); got != "New Conversation" {
		t.Errorf("expected fallback title on nil completion, got %q", got)
	}
}
