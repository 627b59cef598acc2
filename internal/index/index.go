// Package index provides the tenant-partitioned full-text note index.
//
// All note content lives in a single SQLite database with an FTS5 index over
// title and body. Every operation is scoped to one tenant (user account);
// the tenant predicate is part of every query, applied before pagination.
// Lifecycle flags (trash, disabled) are tombstones: flagged documents stay in
// the index, are excluded from default searches, and remain reachable through
// a trash-scoped search.
//
// The Engine interface exists so a networked search cluster can stand in for
// the embedded SQLite implementation; which one runs is deployment
// configuration, not a code-level branch.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Classified outcomes. Callers never see raw driver errors; every public
// method wraps failures in exactly one of these sentinels.
var (
	// ErrNotFound reports that no document matched (tenant, nid).
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate reports an Add colliding with an already-indexed nid.
	ErrDuplicate = errors.New("document already indexed")
	// ErrInvalidQuery reports a query string the index cannot parse even
	// after degrading it to quoted literal terms.
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrOperationFailed wraps backend errors, including timeouts.
	ErrOperationFailed = errors.New("index operation failed")
)

// ItemError ties a batch failure to the document that caused it, so callers
// can retry only the failed subset.
type ItemError struct {
	NID string
	Err error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("nid %s: %v", e.NID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Document is the write-side projection of a node: identity plus
// markup-free title and body. The engine normalizes title and body itself,
// so callers may pass raw content.
type Document struct {
	NID   string
	Title string
	Body  string
}

// RestoreDocument carries full index state for reconstructive bulk inserts
// (disaster recovery, migration). Timestamps and flags are preserved as
// supplied rather than regenerated.
type RestoreDocument struct {
	NID        string
	Title      string
	Body       string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Disabled   bool
	InTrash    bool
}

// Sort selects the result ordering for Search.
type Sort string

const (
	// SortRelevance orders by the engine's text-matching score, best first.
	// Also the "similarity" sort of the mention lookup.
	SortRelevance Sort = "relevance"
	SortCreated   Sort = "created"
	SortModified  Sort = "modified"
	SortTitle     Sort = "title"
)

// SearchRequest holds the inputs of one paginated search.
//
// Reverse applies to structural sorts (created, modified, title) and means
// descending. Relevance results are always best-first regardless of Reverse.
// Page is 1-based. A page starting at or past the total yields an empty page
// with the true total, never an error.
type SearchRequest struct {
	Tenant   string
	Query    string
	Sort     Sort
	Reverse  bool
	Page     int
	PageSize int
	Exclude  []string
	// InTrash scopes the search to trashed documents instead of live ones.
	InTrash bool
}

// Hit is one search result. Highlight fields use the configured markup tags
// and are empty for structural (no-query) searches.
type Hit struct {
	NID            string
	Score          float64
	TitleHighlight string
	BodyHighlights []string
}

// Engine is the index capability set. Implementations classify all failures
// into the package sentinels.
type Engine interface {
	Add(ctx context.Context, tenant string, doc Document) error
	AddBatch(ctx context.Context, tenant string, docs []Document) []ItemError
	Update(ctx context.Context, tenant string, doc Document) error
	Delete(ctx context.Context, tenant, nid string) error
	DeleteBatch(ctx context.Context, tenant string, nids []string) []ItemError

	ToTrash(ctx context.Context, tenant, nid string) error
	RestoreFromTrash(ctx context.Context, tenant, nid string) error
	BatchToTrash(ctx context.Context, tenant string, nids []string) []ItemError
	RestoreBatchFromTrash(ctx context.Context, tenant string, nids []string) []ItemError

	Disable(ctx context.Context, tenant, nid string) error
	Enable(ctx context.Context, tenant, nid string) error

	ForceDeleteAll(ctx context.Context, tenant string) error
	BatchRestoreDocs(ctx context.Context, tenant string, docs []RestoreDocument) []ItemError

	Search(ctx context.Context, req SearchRequest) ([]Hit, int, error)
	Recommend(ctx context.Context, tenant, content string, maxReturn int, exclude []string) ([]Hit, error)

	// Refresh forces buffered writes to become visible to subsequent reads.
	// The SQLite engine commits synchronously, so its Refresh is a no-op;
	// buffered implementations must make it a hard visibility barrier.
	Refresh(ctx context.Context) error
	CountAll(ctx context.Context) (int64, error)
	Close() error
}
