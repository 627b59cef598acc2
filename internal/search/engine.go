// Package search orchestrates node search, recommendation, and the
// @-mention lookup on top of the index engine and the node store.
//
// The index is never authoritative for display: canonical fields (title,
// body, type, timestamps) are always hydrated fresh from the node store,
// which avoids serving stale titles out of a lagging index. The only
// index-sourced display data is highlight fragments and scores.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/notevault/notesearch/internal/index"
	"github.com/notevault/notesearch/internal/normalize"
	"github.com/notevault/notesearch/internal/recent"
	"github.com/notevault/notesearch/internal/store"
)

// DefaultMaxRecommend is the recommendation count when the caller passes 0.
const DefaultMaxRecommend = 5

// snippetPrefixRunes is the synthetic snippet length used when there is no
// query to highlight against.
const snippetPrefixRunes = 60

// NodeHit is a hydrated search result: canonical node fields from the store
// merged with the index's highlight and score.
type NodeHit struct {
	NID            string   `json:"nid"`
	Title          string   `json:"title"`
	Snippet        string   `json:"snippet"`
	Type           string   `json:"type"`
	Score          float64  `json:"score"`
	TitleHighlight string   `json:"title_highlight,omitempty"`
	BodyHighlights []string `json:"body_highlights,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	ModifiedAt     int64    `json:"modified_at"`
}

// Options controls one UserNodes call.
type Options struct {
	Sort    index.Sort
	Reverse bool
	Page    int
	Limit   int
	Exclude []string
	InTrash bool
}

// Engine wires the index, the node store, and the recent tracker together.
// Construct with NewEngine and inject where needed; there is no package
// global.
type Engine struct {
	idx     index.Engine
	nodes   store.NodeStore
	recents *recent.Tracker
	log     *zap.Logger
}

// NewEngine returns a search engine. A nil logger falls back to a no-op.
func NewEngine(idx index.Engine, nodes store.NodeStore, recents *recent.Tracker, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{idx: idx, nodes: nodes, recents: recents, log: log}
}

// UserNodes executes a tenant-scoped search and hydrates the hits.
//
// A non-empty query is appended to the caller's recent-search history as a
// side effect; that write is best-effort and never fails the search.
// Classified index errors propagate unchanged.
func (e *Engine) UserNodes(ctx context.Context, tenant, query string, opts Options) ([]NodeHit, int, error) {
	hits, total, err := e.idx.Search(ctx, index.SearchRequest{
		Tenant:   tenant,
		Query:    query,
		Sort:     opts.Sort,
		Reverse:  opts.Reverse,
		Page:     opts.Page,
		PageSize: opts.Limit,
		Exclude:  opts.Exclude,
		InTrash:  opts.InTrash,
	})
	if err != nil {
		return nil, 0, err
	}

	nodeHits, err := e.hydrate(ctx, tenant, hits)
	if err != nil {
		return nil, 0, err
	}

	if query != "" && e.recents != nil {
		if err := e.recents.PutRecentSearch(ctx, tenant, query); err != nil {
			e.log.Warn("recording recent search failed",
				zap.String("tenant", tenant),
				zap.Error(err))
		}
	}
	return nodeHits, total, nil
}

// Recommend returns up to maxReturn notes similar to content, which need
// not be indexed itself. No history side effect.
func (e *Engine) Recommend(ctx context.Context, tenant, content string, maxReturn int, exclude []string) ([]NodeHit, error) {
	if maxReturn <= 0 {
		maxReturn = DefaultMaxRecommend
	}
	hits, err := e.idx.Recommend(ctx, tenant, content, maxReturn, exclude)
	if err != nil {
		return nil, err
	}
	return e.hydrate(ctx, tenant, hits)
}

// MentionAdded records that the user linked toNid from nid via an
// @-mention, feeding the recency list the empty-query At path serves from.
func (e *Engine) MentionAdded(ctx context.Context, tenant, nid, toNid string) error {
	if e.recents == nil {
		return nil
	}
	return e.recents.AddedAtNode(ctx, tenant, nid, toNid)
}

// hydrate batch-fetches the canonical node records for a hit list and
// merges them, preserving the index's ordering. Hits whose node record has
// vanished are dropped rather than served with index-copied content.
func (e *Engine) hydrate(ctx context.Context, tenant string, hits []index.Hit) ([]NodeHit, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	nids := make([]string, len(hits))
	for i, h := range hits {
		nids[i] = h.NID
	}
	nodes, err := e.nodes.FindByIDs(ctx, tenant, nids)
	if err != nil {
		return nil, fmt.Errorf("hydrating search hits: %w", err)
	}
	byNID := make(map[string]*store.Node, len(nodes))
	for _, n := range nodes {
		byNID[n.NID] = n
	}

	out := make([]NodeHit, 0, len(hits))
	for _, h := range hits {
		n, ok := byNID[h.NID]
		if !ok {
			e.log.Warn("indexed node missing from store",
				zap.String("tenant", tenant),
				zap.String("nid", h.NID))
			continue
		}
		out = append(out, mergeHit(n, h))
	}
	return out, nil
}

func mergeHit(n *store.Node, h index.Hit) NodeHit {
	return NodeHit{
		NID:            n.NID,
		Title:          n.Title,
		Snippet:        snippetOf(n.Body),
		Type:           n.Type,
		Score:          h.Score,
		TitleHighlight: h.TitleHighlight,
		BodyHighlights: h.BodyHighlights,
		CreatedAt:      n.CreatedAt.UnixMilli(),
		ModifiedAt:     n.ModifiedAt.UnixMilli(),
	}
}

// snippetOf is the canonical display snippet: markup-free body prefix,
// truncated to a fixed rune budget.
func snippetOf(body string) string {
	plain := normalize.StripTags(body)
	runes := []rune(plain)
	if len(runes) <= snippetPrefixRunes {
		return plain
	}
	return strings.TrimSpace(string(runes[:snippetPrefixRunes])) + "..."
}
