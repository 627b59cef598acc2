// Package store is the boundary to the canonical node document store.
//
// The search subsystem treats this store as an external collaborator: nodes
// are read for hydrating search hits, and the only writes the search path
// performs are the bounded per-user recent-history lists. The CRUD methods
// beyond that exist for the CLI import path and tests.
//
// Two implementations ship: SQLite (default, same driver as the index) and
// MongoDB. Selection is deployment configuration.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNodeNotExist reports a referenced nid absent at the node-store level.
// Distinct from the index package's not-found: this one means the canonical
// record is gone, so retrying is pointless.
var ErrNodeNotExist = errors.New("node does not exist")

// Node types.
const (
	TypeFile     = "file"
	TypeMarkdown = "markdown"
)

// Bounds of the per-user recent-history lists.
const (
	MaxRecentSearches = 20
	MaxRecentMentions = 10
)

// Node is a user's note, the unit of content being indexed and retrieved.
// A node belongs to exactly one tenant (UID).
type Node struct {
	NID        string
	UID        string
	Title      string
	Body       string
	Type       string
	Disabled   bool
	InTrash    bool
	CreatedAt  time.Time
	ModifiedAt time.Time
	InTrashAt  *time.Time
}

// RecentState holds a user's bounded recency lists, most-recent-first.
// Owned by the user record; mutated only through the recent tracker and
// deleted with the user.
type RecentState struct {
	RecentSearch   []string
	RecentMentions []string
}

// NodeStore is the document-store contract the search subsystem depends on.
// Only equality/membership filters are pushed into the store; all query
// logic lives in the index engine.
type NodeStore interface {
	// FindByIDs returns the tenant's nodes among nids, in no particular
	// order. Missing nids are silently absent from the result.
	FindByIDs(ctx context.Context, tenant string, nids []string) ([]*Node, error)
	// FindOne returns the tenant's node or ErrNodeNotExist.
	FindOne(ctx context.Context, tenant, nid string) (*Node, error)

	GetRecentState(ctx context.Context, tenant string) (*RecentState, error)
	UpdateRecentState(ctx context.Context, tenant string, state *RecentState) error

	// CRUD used by the import path and tests; the search subsystem itself
	// never mutates nodes.
	Insert(ctx context.Context, n *Node) error
	Update(ctx context.Context, n *Node) error
	SetTrash(ctx context.Context, tenant, nid string, inTrash bool) error
	Delete(ctx context.Context, tenant, nid string) error

	Close(ctx context.Context) error
}
