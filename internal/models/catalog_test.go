package models

import (
	"context"
	"errors"
	"testing"

	"github.com/cuygur/llm-council/internal/openrouter"
)

type stubLister struct {
	models []openrouter.Model
	err    error
}

func (s *stubLister) ListModels(context.Context) ([]openrouter.Model, error) {
	return s.models, s.err
}

func TestFetchFormatsAndSorts(t *testing.T) {
	lister := &stubLister{models: []openrouter.Model{
		{ID: "zeta/z-1", Name: "Zeta One", Description: "last"},
		{ID: "acme/a-1", Name: "Acme One", Description: "first"},
		{ID: "noslash", Name: ""},
	}}

	entries := Fetch(context.Background(), lister)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "Acme One" {
		t.Errorf("expected sort by name, got %q first", entries[0].Name)
	}
	if entries[0].Provider != "Acme" {
		t.Errorf("expected provider 'Acme', got %q", entries[0].Provider)
	}
	for _, e := range entries {
		if e.ID == "noslash" {
			if e.Provider != "Unknown" {
				t.Errorf("expected 'Unknown' provider for bare id, got %q", e.Provider)
			}
			if e.Name != "noslash" {
				t.Errorf("expected id as fallback name, got %q", e.Name)
			}
		}
	}
}

func TestFetchFallsBackOnError(t *testing.T) {
	lister := &stubLister{err: errors.New("boom")}
	entries := Fetch(context.Background(), lister)
	if len(entries) != len(DefaultCatalog()) {
		t.Errorf("expected curated catalog on error, got %d entries", len(entries))
	}
}

func TestFetchFallsBackOnEmpty(t *testing.T) {
	entries := Fetch(context.Background(), &stubLister{})
	if len(entries) != len(DefaultCatalog()) {
		t.Errorf("expected curated catalog on empty fetch, got %d entries", len(entries))
	}
}

func TestDefaultCatalogHasProviders(t *testing.T) {
	for _, e := range DefaultCatalog() {
		if e.ID == "" || e.Name == "" || e.Provider == "" {
			t.Errorf("incomplete catalog entry: %+v", e)
		}
	}
}
