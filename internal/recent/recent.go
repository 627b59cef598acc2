// Package recent maintains the per-user bounded recency lists consulted by
// the mention lookup: recent free-text searches and recent mention
// selections. Both follow the same policy: remove if present, push to the
// front, truncate to the bound. Repeating an identical call leaves the list
// unchanged, so the operations are idempotent.
package recent

import (
	"context"
	"fmt"
	"sync"

	"github.com/notevault/notesearch/internal/store"
)

// Tracker applies the recency policy against the node store's user state.
//
// A per-user mutex serializes the read-modify-write inside one process so
// concurrent searches cannot corrupt a list. Across processes the write is
// last-writer-wins, which is accepted: the truncation always applies after
// the merge, so the list can never grow past its bound.
type Tracker struct {
	nodes store.NodeStore

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewTracker returns a tracker writing through the given store.
func NewTracker(nodes store.NodeStore) *Tracker {
	return &Tracker{
		nodes: nodes,
		users: make(map[string]*sync.Mutex),
	}
}

func (t *Tracker) userLock(tenant string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.users[tenant]
	if !ok {
		m = &sync.Mutex{}
		t.users[tenant] = m
	}
	return m
}

// PutRecentSearch records a query at the front of the user's recent-search
// list, bounded to store.MaxRecentSearches.
func (t *Tracker) PutRecentSearch(ctx context.Context, tenant, query string) error {
	if query == "" {
		return nil
	}
	mu := t.userLock(tenant)
	mu.Lock()
	defer mu.Unlock()

	st, err := t.nodes.GetRecentState(ctx, tenant)
	if err != nil {
		return fmt.Errorf("recording recent search: %w", err)
	}
	st.RecentSearch = promote(st.RecentSearch, query, store.MaxRecentSearches)
	if err := t.nodes.UpdateRecentState(ctx, tenant, st); err != nil {
		return fmt.Errorf("recording recent search: %w", err)
	}
	return nil
}

// AddedAtNode records that the user linked toNid from nid via an @-mention.
// Both nodes must exist for the tenant; store.ErrNodeNotExist propagates
// otherwise. The mention list is bounded to store.MaxRecentMentions.
func (t *Tracker) AddedAtNode(ctx context.Context, tenant, nid, toNid string) error {
	if _, err := t.nodes.FindOne(ctx, tenant, nid); err != nil {
		return err
	}
	if _, err := t.nodes.FindOne(ctx, tenant, toNid); err != nil {
		return err
	}

	mu := t.userLock(tenant)
	mu.Lock()
	defer mu.Unlock()

	st, err := t.nodes.GetRecentState(ctx, tenant)
	if err != nil {
		return fmt.Errorf("recording mention selection: %w", err)
	}
	st.RecentMentions = promote(st.RecentMentions, toNid, store.MaxRecentMentions)
	if err := t.nodes.UpdateRecentState(ctx, tenant, st); err != nil {
		return fmt.Errorf("recording mention selection: %w", err)
	}
	return nil
}

// promote applies the recency policy: remove v if present, insert at the
// front, truncate to max.
func promote(list []string, v string, max int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, v)
	for _, item := range list {
		if item == v {
			continue
		}
		out = append(out, item)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}
