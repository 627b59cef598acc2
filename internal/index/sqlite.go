package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/notevault/notesearch/internal/normalize"
)

// Defaults for Options fields left zero.
const (
	DefaultPageSize     = 10
	DefaultMaxPageSize  = 100
	DefaultMaxRecommend = 5
	DefaultTokenizer    = "porter unicode61"

	defaultHighlightPre  = `<em class="search-keyword">`
	defaultHighlightPost = `</em>`
	defaultEllipsis      = "..."
	defaultSnippetTokens = 24
)

// Options configures the SQLite engine.
type Options struct {
	// DBPath is the database file; ":memory:" for tests.
	DBPath string
	// Tokenizer is the FTS5 tokenize= clause.
	Tokenizer string
	// Stopwords are dropped from queries and recommendation content before
	// matching. Comparison is lowercase.
	Stopwords []string
	// HighlightPre/HighlightPost wrap matched terms in highlight output.
	HighlightPre  string
	HighlightPost string
	// Ellipsis marks truncation in body snippets.
	Ellipsis string
	// SnippetTokens is the approximate token budget per body snippet.
	SnippetTokens int
	// MaxPageSize caps SearchRequest.PageSize.
	MaxPageSize int
}

func (o *Options) fillDefaults() {
	if o.Tokenizer == "" {
		o.Tokenizer = DefaultTokenizer
	}
	if o.HighlightPre == "" {
		o.HighlightPre = defaultHighlightPre
	}
	if o.HighlightPost == "" {
		o.HighlightPost = defaultHighlightPost
	}
	if o.Ellipsis == "" {
		o.Ellipsis = defaultEllipsis
	}
	if o.SnippetTokens <= 0 {
		o.SnippetTokens = defaultSnippetTokens
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = DefaultMaxPageSize
	}
}

// SQLiteEngine implements Engine on SQLite + FTS5.
type SQLiteEngine struct {
	db        *sql.DB
	opts      Options
	stopwords map[string]struct{}
}

var _ Engine = (*SQLiteEngine)(nil)

// NewSQLiteEngine opens (or creates) the index database and bootstraps the
// schema. Idempotent: reopening an existing database is a no-op beyond
// verifying the schema.
func NewSQLiteEngine(opts Options) (*SQLiteEngine, error) {
	opts.fillDefaults()
	if opts.DBPath == "" {
		return nil, fmt.Errorf("%w: db path required", ErrOperationFailed)
	}

	if opts.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating db directory: %v", ErrOperationFailed, err)
		}
	}

	db, err := sql.Open("sqlite", opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrOperationFailed, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging database: %v", ErrOperationFailed, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: setting pragma %q: %v", ErrOperationFailed, p, err)
		}
	}

	e := &SQLiteEngine{
		db:        db,
		opts:      opts,
		stopwords: make(map[string]struct{}, len(opts.Stopwords)),
	}
	for _, w := range opts.Stopwords {
		e.stopwords[strings.ToLower(w)] = struct{}{}
	}

	if err := e.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

// Close closes the database connection.
func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

func (e *SQLiteEngine) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS docs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant      TEXT NOT NULL,
			nid         TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			body        TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL,
			modified_at DATETIME NOT NULL,
			disabled    INTEGER NOT NULL DEFAULT 0,
			in_trash    INTEGER NOT NULL DEFAULT 0,
			UNIQUE(tenant, nid)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_docs_tenant_created ON docs(tenant, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_docs_tenant_modified ON docs(tenant, modified_at)`,

		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(
			title,
			body,
			content=docs,
			content_rowid=id,
			tokenize='%s'
		)`, e.opts.Tokenizer),

		// FTS sync triggers. Trashed and disabled rows stay in the FTS
		// index; exclusion happens in query WHERE clauses so trash-scoped
		// searches can still match text.
		`CREATE TRIGGER IF NOT EXISTS docs_ai AFTER INSERT ON docs BEGIN
			INSERT INTO docs_fts(rowid, title, body)
			VALUES (new.id, new.title, new.body);
		END`,

		`CREATE TRIGGER IF NOT EXISTS docs_ad AFTER DELETE ON docs BEGIN
			INSERT INTO docs_fts(docs_fts, rowid, title, body)
			VALUES ('delete', old.id, old.title, old.body);
		END`,

		`CREATE TRIGGER IF NOT EXISTS docs_au AFTER UPDATE ON docs BEGIN
			INSERT INTO docs_fts(docs_fts, rowid, title, body)
			VALUES ('delete', old.id, old.title, old.body);
			INSERT INTO docs_fts(rowid, title, body)
			VALUES (new.id, new.title, new.body);
		END`,
	}

	for _, stmt := range statements {
		if _, err := e.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: bootstrapping schema: %v", ErrOperationFailed, err)
		}
	}
	return nil
}

// Add inserts one new document for the tenant.
func (e *SQLiteEngine) Add(ctx context.Context, tenant string, doc Document) error {
	if doc.NID == "" {
		return fmt.Errorf("%w: empty nid", ErrOperationFailed)
	}
	now := time.Now().UTC()
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO docs (tenant, nid, title, body, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tenant, doc.NID,
		normalize.StripTags(doc.Title), normalize.StripTags(doc.Body),
		now, now,
	)
	return e.classify("adding document", err)
}

// AddBatch inserts documents one by one, collecting per-item failures so the
// caller can retry only the failed subset. A failed item does not abort the
// rest of the batch.
func (e *SQLiteEngine) AddBatch(ctx context.Context, tenant string, docs []Document) []ItemError {
	var failed []ItemError
	for _, doc := range docs {
		if err := e.Add(ctx, tenant, doc); err != nil {
			failed = append(failed, ItemError{NID: doc.NID, Err: err})
		}
	}
	return failed
}

// Update rewrites a document's content. An empty Title or Body keeps the
// existing value (partial-update convention). The FTS delete+insert runs
// inside the row update's triggers, so a concurrent write to the same nid
// sees either the old or the new document, never a half-applied one.
func (e *SQLiteEngine) Update(ctx context.Context, tenant string, doc Document) error {
	now := time.Now().UTC()
	res, err := e.db.ExecContext(ctx,
		`UPDATE docs SET
			title = CASE WHEN ? = '' THEN title ELSE ? END,
			body  = CASE WHEN ? = '' THEN body  ELSE ? END,
			modified_at = ?
		 WHERE tenant = ? AND nid = ?`,
		doc.Title, normalize.StripTags(doc.Title),
		doc.Body, normalize.StripTags(doc.Body),
		now, tenant, doc.NID,
	)
	if err != nil {
		return e.classify("updating document", err)
	}
	return e.requireOneRow(res, "updating document")
}

// Delete hard-removes a document from the index. Used only for permanent
// deletion; trash is a flag, not a removal.
func (e *SQLiteEngine) Delete(ctx context.Context, tenant, nid string) error {
	res, err := e.db.ExecContext(ctx,
		`DELETE FROM docs WHERE tenant = ? AND nid = ?`, tenant, nid)
	if err != nil {
		return e.classify("deleting document", err)
	}
	return e.requireOneRow(res, "deleting document")
}

// DeleteBatch hard-removes documents, reporting per-item failures.
func (e *SQLiteEngine) DeleteBatch(ctx context.Context, tenant string, nids []string) []ItemError {
	var failed []ItemError
	for _, nid := range nids {
		if err := e.Delete(ctx, tenant, nid); err != nil {
			failed = append(failed, ItemError{NID: nid, Err: err})
		}
	}
	return failed
}

// setFlag flips one lifecycle flag on a single document.
func (e *SQLiteEngine) setFlag(ctx context.Context, tenant, nid, col string, val bool, op string) error {
	v := 0
	if val {
		v = 1
	}
	// col is one of two compile-time constants, never caller input.
	res, err := e.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE docs SET %s = ? WHERE tenant = ? AND nid = ?`, col),
		v, tenant, nid)
	if err != nil {
		return e.classify(op, err)
	}
	return e.requireOneRow(res, op)
}

// ToTrash tombstones a document: excluded from default search, reachable via
// trash-scoped search.
func (e *SQLiteEngine) ToTrash(ctx context.Context, tenant, nid string) error {
	return e.setFlag(ctx, tenant, nid, "in_trash", true, "trashing document")
}

// RestoreFromTrash reverses ToTrash exactly.
func (e *SQLiteEngine) RestoreFromTrash(ctx context.Context, tenant, nid string) error {
	return e.setFlag(ctx, tenant, nid, "in_trash", false, "restoring document")
}

// BatchToTrash tombstones documents, reporting per-item failures.
func (e *SQLiteEngine) BatchToTrash(ctx context.Context, tenant string, nids []string) []ItemError {
	return e.batchFlag(ctx, tenant, nids, e.ToTrash)
}

// RestoreBatchFromTrash reverses BatchToTrash.
func (e *SQLiteEngine) RestoreBatchFromTrash(ctx context.Context, tenant string, nids []string) []ItemError {
	return e.batchFlag(ctx, tenant, nids, e.RestoreFromTrash)
}

// Disable sets the second, trash-independent exclusion flag.
func (e *SQLiteEngine) Disable(ctx context.Context, tenant, nid string) error {
	return e.setFlag(ctx, tenant, nid, "disabled", true, "disabling document")
}

// Enable reverses Disable.
func (e *SQLiteEngine) Enable(ctx context.Context, tenant, nid string) error {
	return e.setFlag(ctx, tenant, nid, "disabled", false, "enabling document")
}

func (e *SQLiteEngine) batchFlag(ctx context.Context, tenant string, nids []string, fn func(context.Context, string, string) error) []ItemError {
	var failed []ItemError
	for _, nid := range nids {
		if err := fn(ctx, tenant, nid); err != nil {
			failed = append(failed, ItemError{NID: nid, Err: err})
		}
	}
	return failed
}

// ForceDeleteAll wipes every document of one tenant. Account deletion path.
func (e *SQLiteEngine) ForceDeleteAll(ctx context.Context, tenant string) error {
	_, err := e.db.ExecContext(ctx, `DELETE FROM docs WHERE tenant = ?`, tenant)
	return e.classify("wiping tenant", err)
}

// BatchRestoreDocs reconstructs index state from externally preserved
// documents, keeping supplied timestamps and flags. Upsert semantics make it
// idempotent: re-applying the same set yields the same index, latest write
// wins per nid.
func (e *SQLiteEngine) BatchRestoreDocs(ctx context.Context, tenant string, docs []RestoreDocument) []ItemError {
	var failed []ItemError
	for _, d := range docs {
		if d.NID == "" {
			failed = append(failed, ItemError{NID: d.NID, Err: fmt.Errorf("%w: empty nid", ErrOperationFailed)})
			continue
		}
		disabled, inTrash := 0, 0
		if d.Disabled {
			disabled = 1
		}
		if d.InTrash {
			inTrash = 1
		}
		_, err := e.db.ExecContext(ctx,
			`INSERT INTO docs (tenant, nid, title, body, created_at, modified_at, disabled, in_trash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(tenant, nid) DO UPDATE SET
				title = excluded.title,
				body = excluded.body,
				created_at = excluded.created_at,
				modified_at = excluded.modified_at,
				disabled = excluded.disabled,
				in_trash = excluded.in_trash`,
			tenant, d.NID,
			normalize.StripTags(d.Title), normalize.StripTags(d.Body),
			d.CreatedAt.UTC(), d.ModifiedAt.UTC(), disabled, inTrash,
		)
		if err != nil {
			failed = append(failed, ItemError{NID: d.NID, Err: e.classify("restoring document", err)})
		}
	}
	return failed
}

// Refresh is a no-op: SQLite commits are synchronously visible, so every
// write is readable the moment the mutation returns.
func (e *SQLiteEngine) Refresh(ctx context.Context) error {
	return nil
}

// CountAll returns the total document count across all tenants.
func (e *SQLiteEngine) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n)
	if err != nil {
		return 0, e.classify("counting documents", err)
	}
	return n, nil
}

// requireOneRow converts a zero-rows-affected mutation into ErrNotFound.
func (e *SQLiteEngine) requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return e.classify(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return nil
}

// classify maps driver errors onto the package sentinels. Raw storage
// errors never leave this package.
func (e *SQLiteEngine) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", ErrDuplicate, op)
	case strings.Contains(msg, "fts5: syntax error"):
		return fmt.Errorf("%w: %s", ErrInvalidQuery, op)
	default:
		return fmt.Errorf("%w: %s: %v", ErrOperationFailed, op, err)
	}
}
