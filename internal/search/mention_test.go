package search

import (
	"context"
	"testing"

	"github.com/notevault/notesearch/internal/store"
)

func TestAtEmptyQueryRecencyOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "first note", "alpha")
	f.addNote(t, "u1", "n2", "editing note", "beta")
	f.addNote(t, "u1", "n3", "third note", "gamma")

	// Mention history: n1 then n3, so recency order is [n3, n1].
	if err := f.nodes.UpdateRecentState(ctx, "u1", &store.RecentState{
		RecentMentions: []string{"n3", "n1"},
	}); err != nil {
		t.Fatalf("seeding state: %v", err)
	}

	hits, total, err := f.engine.At(ctx, "u1", "n2", "", 1, 10)
	if err != nil {
		t.Fatalf("at: %v", err)
	}
	if total != 2 || len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d (total %d)", len(hits), total)
	}
	if hits[0].NID != "n3" || hits[1].NID != "n1" {
		t.Errorf("order = [%s, %s], want [n3, n1]", hits[0].NID, hits[1].NID)
	}
	// Nothing to highlight against: synthetic snippets only.
	if hits[0].TitleHighlight != "" || len(hits[0].BodyHighlights) != 0 {
		t.Errorf("empty-query mention carries highlights: %+v", hits[0])
	}
	if hits[0].Snippet != "gamma" {
		t.Errorf("snippet = %q", hits[0].Snippet)
	}
}

func TestAtEmptyQueryExcludesSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "a", "x")
	f.addNote(t, "u1", "n2", "b", "y")

	if err := f.nodes.UpdateRecentState(ctx, "u1", &store.RecentState{
		RecentMentions: []string{"n1", "n2"},
	}); err != nil {
		t.Fatalf("seeding state: %v", err)
	}

	hits, total, err := f.engine.At(ctx, "u1", "n1", "", 1, 10)
	if err != nil {
		t.Fatalf("at: %v", err)
	}
	if total != 1 || hits[0].NID != "n2" {
		t.Errorf("editing node not excluded from its own mention list: %v", hits)
	}
}

func TestAtEmptyQueryNoHistory(t *testing.T) {
	f := newFixture(t)
	hits, total, err := f.engine.At(context.Background(), "u1", "n1", "", 1, 10)
	if err != nil {
		t.Fatalf("at: %v", err)
	}
	if len(hits) != 0 || total != 0 {
		t.Errorf("fresh user got mention candidates: %v", hits)
	}
}

func TestAtEmptyQuerySkipsVanishedNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "a", "x")

	// History references a node that no longer exists.
	if err := f.nodes.UpdateRecentState(ctx, "u1", &store.RecentState{
		RecentMentions: []string{"gone", "n1"},
	}); err != nil {
		t.Fatalf("seeding state: %v", err)
	}

	hits, total, err := f.engine.At(ctx, "u1", "editor", "", 1, 10)
	if err != nil {
		t.Fatalf("at: %v", err)
	}
	if total != 1 || hits[0].NID != "n1" {
		t.Errorf("vanished mention served: %v", hits)
	}
}

func TestAtWithQuerySearchesAndExcludesSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "Kyoto guide", "temples and gardens in kyoto")
	f.addNote(t, "u1", "n2", "Kyoto diary", "my kyoto trip notes")

	// Searching from within n1: n1 must not offer itself.
	hits, total, err := f.engine.At(ctx, "u1", "n1", "kyoto", 1, 10)
	if err != nil {
		t.Fatalf("at: %v", err)
	}
	if total != 1 || len(hits) != 1 || hits[0].NID != "n2" {
		t.Fatalf("self-exclusion failed: %v (total %d)", hits, total)
	}
	if hits[0].TitleHighlight == "" {
		t.Errorf("query mention lookup lost highlights")
	}
}

func TestAtQueryWhitespaceIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "a", "x")
	if err := f.nodes.UpdateRecentState(ctx, "u1", &store.RecentState{
		RecentMentions: []string{"n1"},
	}); err != nil {
		t.Fatalf("seeding state: %v", err)
	}

	hits, _, err := f.engine.At(ctx, "u1", "editor", "   ", 1, 10)
	if err != nil {
		t.Fatalf("at: %v", err)
	}
	if len(hits) != 1 || hits[0].NID != "n1" {
		t.Errorf("whitespace query did not take the recency path: %v", hits)
	}

	// And it left the search history untouched.
	st, _ := f.nodes.GetRecentState(ctx, "u1")
	if len(st.RecentSearch) != 0 {
		t.Errorf("whitespace mention lookup recorded history: %v", st.RecentSearch)
	}
}
