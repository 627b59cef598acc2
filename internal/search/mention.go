package search

import (
	"context"
	"strings"

	"github.com/notevault/notesearch/internal/index"
)

// At serves the "@" autocomplete for linking one node to another.
//
// An empty query returns the user's recent mention selections in exact
// recency order, with synthetic snippets since there is nothing to
// highlight against. A non-empty query is a similarity search. Either way,
// nid itself is excluded: a node cannot mention itself.
func (e *Engine) At(ctx context.Context, tenant, nid, query string, page, limit int) ([]NodeHit, int, error) {
	query = strings.TrimSpace(query)
	if query != "" {
		return e.UserNodes(ctx, tenant, query, Options{
			Sort:    index.SortRelevance,
			Reverse: true,
			Page:    page,
			Limit:   limit,
			Exclude: []string{nid},
		})
	}

	st, err := e.nodes.GetRecentState(ctx, tenant)
	if err != nil {
		return nil, 0, err
	}
	recents := make([]string, 0, len(st.RecentMentions))
	for _, m := range st.RecentMentions {
		if m == nid {
			continue
		}
		recents = append(recents, m)
	}
	if len(recents) == 0 {
		return nil, 0, nil
	}

	nodes, err := e.nodes.FindByIDs(ctx, tenant, recents)
	if err != nil {
		return nil, 0, err
	}
	byNID := make(map[string]int, len(nodes))
	for i, n := range nodes {
		byNID[n.NID] = i
	}

	// Result order is the recency list's order, not the store's.
	hits := make([]NodeHit, 0, len(recents))
	for _, m := range recents {
		i, ok := byNID[m]
		if !ok {
			continue
		}
		hits = append(hits, mergeHit(nodes[i], index.Hit{NID: m}))
	}
	return hits, len(hits), nil
}
