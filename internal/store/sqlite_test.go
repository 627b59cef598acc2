package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func mustInsert(t *testing.T, s *SQLiteStore, n *Node) {
	t.Helper()
	if err := s.Insert(context.Background(), n); err != nil {
		t.Fatalf("inserting %s: %v", n.NID, err)
	}
}

func TestInsertAndFindOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, s, &Node{NID: "n1", UID: "u1", Title: "Trip plan", Body: "Visit Kyoto"})

	n, err := s.FindOne(ctx, "u1", "n1")
	if err != nil {
		t.Fatalf("findOne: %v", err)
	}
	if n.Title != "Trip plan" || n.Body != "Visit Kyoto" {
		t.Errorf("wrong content: %+v", n)
	}
	if n.Type != TypeMarkdown {
		t.Errorf("type defaulted to %q, want %q", n.Type, TypeMarkdown)
	}
	if n.CreatedAt.IsZero() || n.ModifiedAt.IsZero() {
		t.Errorf("timestamps not stamped: %+v", n)
	}
	if n.InTrashAt != nil {
		t.Errorf("in_trash_at set on fresh node")
	}
}

func TestFindOneNotExist(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindOne(context.Background(), "u1", "ghost")
	if !errors.Is(err, ErrNodeNotExist) {
		t.Fatalf("expected ErrNodeNotExist, got %v", err)
	}
}

func TestFindOneTenantScoped(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, &Node{NID: "n1", UID: "u1", Title: "mine"})

	if _, err := s.FindOne(context.Background(), "u2", "n1"); !errors.Is(err, ErrNodeNotExist) {
		t.Fatalf("cross-tenant read succeeded: %v", err)
	}
}

func TestFindByIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, s, &Node{NID: "n1", UID: "u1", Title: "a"})
	mustInsert(t, s, &Node{NID: "n2", UID: "u1", Title: "b"})
	mustInsert(t, s, &Node{NID: "n1", UID: "u2", Title: "other tenant"})

	nodes, err := s.FindByIDs(ctx, "u1", []string{"n1", "n2", "ghost"})
	if err != nil {
		t.Fatalf("findByIDs: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2 (missing ids silently dropped)", len(nodes))
	}
	for _, n := range nodes {
		if n.UID != "u1" {
			t.Errorf("leaked node from tenant %s", n.UID)
		}
	}

	nodes, err = s.FindByIDs(ctx, "u1", nil)
	if err != nil || nodes != nil {
		t.Errorf("empty input should return nil, nil; got %v, %v", nodes, err)
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, s, &Node{NID: "n1", UID: "u1", Title: "old", Body: "old body"})

	before, _ := s.FindOne(ctx, "u1", "n1")
	time.Sleep(5 * time.Millisecond)

	if err := s.Update(ctx, &Node{NID: "n1", UID: "u1", Title: "new", Body: "new body", Type: TypeMarkdown}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after, _ := s.FindOne(ctx, "u1", "n1")
	if after.Title != "new" || after.Body != "new body" {
		t.Errorf("content not updated: %+v", after)
	}
	if !after.ModifiedAt.After(before.ModifiedAt) {
		t.Errorf("modified_at not bumped: %v -> %v", before.ModifiedAt, after.ModifiedAt)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("created_at changed on update")
	}

	err := s.Update(ctx, &Node{NID: "ghost", UID: "u1"})
	if !errors.Is(err, ErrNodeNotExist) {
		t.Errorf("expected ErrNodeNotExist, got %v", err)
	}
}

func TestSetTrashStampsAndClears(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, s, &Node{NID: "n1", UID: "u1"})

	if err := s.SetTrash(ctx, "u1", "n1", true); err != nil {
		t.Fatalf("setTrash: %v", err)
	}
	n, _ := s.FindOne(ctx, "u1", "n1")
	if !n.InTrash || n.InTrashAt == nil {
		t.Errorf("trash entry not recorded: %+v", n)
	}

	if err := s.SetTrash(ctx, "u1", "n1", false); err != nil {
		t.Fatalf("setTrash restore: %v", err)
	}
	n, _ = s.FindOne(ctx, "u1", "n1")
	if n.InTrash || n.InTrashAt != nil {
		t.Errorf("trash exit did not clear stamp: %+v", n)
	}

	if err := s.SetTrash(ctx, "u1", "ghost", true); !errors.Is(err, ErrNodeNotExist) {
		t.Errorf("expected ErrNodeNotExist, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, s, &Node{NID: "n1", UID: "u1"})

	if err := s.Delete(ctx, "u1", "n1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.FindOne(ctx, "u1", "n1"); !errors.Is(err, ErrNodeNotExist) {
		t.Errorf("node still present after delete")
	}
	if err := s.Delete(ctx, "u1", "n1"); !errors.Is(err, ErrNodeNotExist) {
		t.Errorf("double delete should report missing, got %v", err)
	}
}

func TestRecentStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A user with no state yet gets empty lists, not an error.
	st, err := s.GetRecentState(ctx, "u1")
	if err != nil {
		t.Fatalf("getRecentState: %v", err)
	}
	if len(st.RecentSearch) != 0 || len(st.RecentMentions) != 0 {
		t.Errorf("fresh user has state: %+v", st)
	}

	in := &RecentState{
		RecentSearch:   []string{"kyoto", "budget"},
		RecentMentions: []string{"n3", "n1"},
	}
	if err := s.UpdateRecentState(ctx, "u1", in); err != nil {
		t.Fatalf("updateRecentState: %v", err)
	}
	out, err := s.GetRecentState(ctx, "u1")
	if err != nil {
		t.Fatalf("getRecentState: %v", err)
	}
	if len(out.RecentSearch) != 2 || out.RecentSearch[0] != "kyoto" {
		t.Errorf("recent searches round-trip: %v", out.RecentSearch)
	}
	if len(out.RecentMentions) != 2 || out.RecentMentions[0] != "n3" {
		t.Errorf("recent mentions round-trip: %v", out.RecentMentions)
	}

	// Whole-list overwrite, last writer wins.
	if err := s.UpdateRecentState(ctx, "u1", &RecentState{RecentSearch: []string{"osaka"}}); err != nil {
		t.Fatalf("updateRecentState: %v", err)
	}
	out, _ = s.GetRecentState(ctx, "u1")
	if len(out.RecentSearch) != 1 || out.RecentSearch[0] != "osaka" {
		t.Errorf("overwrite not applied: %v", out.RecentSearch)
	}
	if len(out.RecentMentions) != 0 {
		t.Errorf("nil list should persist as empty: %v", out.RecentMentions)
	}
}

func TestRecentStatePerTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.UpdateRecentState(ctx, "u1", &RecentState{RecentSearch: []string{"mine"}}); err != nil {
		t.Fatalf("updateRecentState: %v", err)
	}
	st, err := s.GetRecentState(ctx, "u2")
	if err != nil {
		t.Fatalf("getRecentState: %v", err)
	}
	if len(st.RecentSearch) != 0 {
		t.Errorf("u2 sees u1's recent searches: %v", st.RecentSearch)
	}
}
