package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/notevault/notesearch/internal/index"
	"github.com/notevault/notesearch/internal/recent"
	"github.com/notevault/notesearch/internal/store"
)

type fixture struct {
	engine *Engine
	idx    *index.SQLiteEngine
	nodes  *store.SQLiteStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx, err := index.NewSQLiteEngine(index.Options{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	nodes, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating node store: %v", err)
	}
	t.Cleanup(func() { nodes.Close(context.Background()) })

	tracker := recent.NewTracker(nodes)
	return &fixture{
		engine: NewEngine(idx, nodes, tracker, nil),
		idx:    idx,
		nodes:  nodes,
	}
}

// addNote writes a note to both the store and the index, the way the write
// path does it.
func (f *fixture) addNote(t *testing.T, tenant, nid, title, body string) {
	t.Helper()
	ctx := context.Background()
	if err := f.nodes.Insert(ctx, &store.Node{NID: nid, UID: tenant, Title: title, Body: body}); err != nil {
		t.Fatalf("inserting node %s: %v", nid, err)
	}
	if err := f.idx.Add(ctx, tenant, index.Document{NID: nid, Title: title, Body: body}); err != nil {
		t.Fatalf("indexing %s: %v", nid, err)
	}
}

func TestUserNodesHydratesFromStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "Trip plan", "Visit Kyoto in spring")

	// The store's title changes after indexing; the hit must carry the
	// store's version.
	if err := f.nodes.Update(ctx, &store.Node{NID: "n1", UID: "u1", Title: "Trip plan v2", Body: "Visit Kyoto in spring", Type: store.TypeMarkdown}); err != nil {
		t.Fatalf("updating node: %v", err)
	}

	hits, total, err := f.engine.UserNodes(ctx, "u1", "kyoto", Options{})
	if err != nil {
		t.Fatalf("userNodes: %v", err)
	}
	if total != 1 || len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d (total %d)", len(hits), total)
	}
	h := hits[0]
	if h.Title != "Trip plan v2" {
		t.Errorf("title served from index, not store: %q", h.Title)
	}
	if h.Type != store.TypeMarkdown {
		t.Errorf("type = %q", h.Type)
	}
	if h.CreatedAt == 0 || h.ModifiedAt == 0 {
		t.Errorf("timestamps not hydrated: %+v", h)
	}
	if len(h.BodyHighlights) == 0 {
		t.Errorf("index highlights lost in hydration")
	}
}

func TestUserNodesRecordsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "t", "searchable body")

	if _, _, err := f.engine.UserNodes(ctx, "u1", "searchable", Options{}); err != nil {
		t.Fatalf("userNodes: %v", err)
	}
	st, err := f.nodes.GetRecentState(ctx, "u1")
	if err != nil {
		t.Fatalf("getRecentState: %v", err)
	}
	if len(st.RecentSearch) != 1 || st.RecentSearch[0] != "searchable" {
		t.Errorf("query not recorded: %v", st.RecentSearch)
	}

	// Empty query (structural listing) leaves history alone.
	if _, _, err := f.engine.UserNodes(ctx, "u1", "", Options{}); err != nil {
		t.Fatalf("userNodes: %v", err)
	}
	st, _ = f.nodes.GetRecentState(ctx, "u1")
	if len(st.RecentSearch) != 1 {
		t.Errorf("empty query recorded: %v", st.RecentSearch)
	}
}

// failingStateStore wraps a NodeStore and fails every recent-state write.
type failingStateStore struct {
	store.NodeStore
}

func (f *failingStateStore) UpdateRecentState(ctx context.Context, tenant string, st *store.RecentState) error {
	return errors.New("state store down")
}

func TestUserNodesHistoryIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "t", "resilient body")

	broken := recent.NewTracker(&failingStateStore{NodeStore: f.nodes})
	engine := NewEngine(f.idx, f.nodes, broken, nil)

	hits, total, err := engine.UserNodes(ctx, "u1", "resilient", Options{})
	if err != nil {
		t.Fatalf("history failure leaked into search: %v", err)
	}
	if total != 1 || len(hits) != 1 {
		t.Errorf("search results lost: %d hits", len(hits))
	}
}

func TestUserNodesDropsVanishedNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "a", "common words")
	f.addNote(t, "u1", "n2", "b", "common words")

	// n2's node record vanishes but its index entry stays.
	if err := f.nodes.Delete(ctx, "u1", "n2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	hits, _, err := f.engine.UserNodes(ctx, "u1", "common", Options{})
	if err != nil {
		t.Fatalf("userNodes: %v", err)
	}
	if len(hits) != 1 || hits[0].NID != "n1" {
		t.Errorf("vanished node served from index: %v", hits)
	}
}

func TestUserNodesPropagatesIndexErrors(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := f.engine.UserNodes(ctx, "u1", "anything", Options{})
	if !errors.Is(err, index.ErrOperationFailed) {
		t.Errorf("expected classified index error, got %v", err)
	}
}

func TestRecommendNoHistorySideEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "u1", "n1", "Trip plan", "Visit Kyoto in spring")
	f.addNote(t, "u1", "n2", "Q3", "quarterly budget report")

	hits, err := f.engine.Recommend(ctx, "u1", "spring trip to Japan", 0, nil)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(hits) == 0 || hits[0].NID != "n1" {
		t.Fatalf("expected n1 first, got %v", hits)
	}
	if hits[0].Title != "Trip plan" {
		t.Errorf("not hydrated: %+v", hits[0])
	}

	st, _ := f.nodes.GetRecentState(ctx, "u1")
	if len(st.RecentSearch) != 0 {
		t.Errorf("recommend wrote search history: %v", st.RecentSearch)
	}
}

func TestSnippetOf(t *testing.T) {
	short := snippetOf("<p>short body</p>")
	if short != "short body" {
		t.Errorf("snippetOf short = %q", short)
	}

	long := snippetOf(strings.Repeat("λ", 100))
	if got := len([]rune(long)); got != snippetPrefixRunes+3 {
		t.Errorf("snippet rune length = %d, want %d + ellipsis", got, snippetPrefixRunes)
	}
	if !strings.HasSuffix(long, "...") {
		t.Errorf("long snippet missing ellipsis: %q", long)
	}
}
