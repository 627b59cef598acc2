package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements NodeStore on SQLite. Pass ":memory:" for tests.
type SQLiteStore struct {
	db *sql.DB
}

var _ NodeStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the node database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("node store: db path required")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening node database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging node database: %w", err)
	}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant      TEXT NOT NULL,
			nid         TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			body        TEXT NOT NULL DEFAULT '',
			type        TEXT NOT NULL DEFAULT 'markdown',
			disabled    INTEGER NOT NULL DEFAULT 0,
			in_trash    INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL,
			modified_at DATETIME NOT NULL,
			in_trash_at DATETIME,
			UNIQUE(tenant, nid)
		)`,

		// Recency lists live with the user record; JSON columns keep the
		// store schema-free about list shape.
		`CREATE TABLE IF NOT EXISTS user_state (
			tenant          TEXT PRIMARY KEY,
			recent_search   TEXT NOT NULL DEFAULT '[]',
			recent_mentions TEXT NOT NULL DEFAULT '[]'
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("bootstrapping node schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

const nodeColumns = `nid, tenant, title, body, type, disabled, in_trash, created_at, modified_at, in_trash_at`

func scanNode(scan func(dest ...interface{}) error) (*Node, error) {
	n := &Node{}
	var disabled, inTrash int
	var inTrashAt sql.NullTime
	if err := scan(&n.NID, &n.UID, &n.Title, &n.Body, &n.Type,
		&disabled, &inTrash, &n.CreatedAt, &n.ModifiedAt, &inTrashAt); err != nil {
		return nil, err
	}
	n.Disabled = disabled != 0
	n.InTrash = inTrash != 0
	if inTrashAt.Valid {
		t := inTrashAt.Time
		n.InTrashAt = &t
	}
	return n, nil
}

// FindByIDs batch-fetches the tenant's nodes among nids.
func (s *SQLiteStore) FindByIDs(ctx context.Context, tenant string, nids []string) ([]*Node, error) {
	if len(nids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(nids)+1)
	args = append(args, tenant)
	marks := make([]string, len(nids))
	for i, nid := range nids {
		marks[i] = "?"
		args = append(args, nid)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE tenant = ? AND nid IN (`+strings.Join(marks, ",")+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("finding nodes by ids: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// FindOne returns the tenant's node or ErrNodeNotExist.
func (s *SQLiteStore) FindOne(ctx context.Context, tenant, nid string) (*Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE tenant = ? AND nid = ?`,
		tenant, nid,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotExist, nid)
	}
	if err != nil {
		return nil, fmt.Errorf("finding node %s: %w", nid, err)
	}
	return n, nil
}

// GetRecentState reads a user's recency lists; a user with no state yet
// gets empty lists, not an error.
func (s *SQLiteStore) GetRecentState(ctx context.Context, tenant string) (*RecentState, error) {
	var searchJSON, mentionsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT recent_search, recent_mentions FROM user_state WHERE tenant = ?`, tenant,
	).Scan(&searchJSON, &mentionsJSON)
	if err == sql.ErrNoRows {
		return &RecentState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading recent state: %w", err)
	}

	st := &RecentState{}
	if err := json.Unmarshal([]byte(searchJSON), &st.RecentSearch); err != nil {
		return nil, fmt.Errorf("decoding recent searches: %w", err)
	}
	if err := json.Unmarshal([]byte(mentionsJSON), &st.RecentMentions); err != nil {
		return nil, fmt.Errorf("decoding recent mentions: %w", err)
	}
	return st, nil
}

// UpdateRecentState writes a user's recency lists whole. Last writer wins.
func (s *SQLiteStore) UpdateRecentState(ctx context.Context, tenant string, state *RecentState) error {
	searchJSON, err := json.Marshal(emptyAsList(state.RecentSearch))
	if err != nil {
		return fmt.Errorf("encoding recent searches: %w", err)
	}
	mentionsJSON, err := json.Marshal(emptyAsList(state.RecentMentions))
	if err != nil {
		return fmt.Errorf("encoding recent mentions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_state (tenant, recent_search, recent_mentions)
		 VALUES (?, ?, ?)
		 ON CONFLICT(tenant) DO UPDATE SET
			recent_search = excluded.recent_search,
			recent_mentions = excluded.recent_mentions`,
		tenant, string(searchJSON), string(mentionsJSON),
	)
	if err != nil {
		return fmt.Errorf("writing recent state: %w", err)
	}
	return nil
}

func emptyAsList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Insert creates a node record.
func (s *SQLiteStore) Insert(ctx context.Context, n *Node) error {
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.ModifiedAt.IsZero() {
		n.ModifiedAt = now
	}
	if n.Type == "" {
		n.Type = TypeMarkdown
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (tenant, nid, title, body, type, disabled, in_trash, created_at, modified_at, in_trash_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UID, n.NID, n.Title, n.Body, n.Type,
		boolInt(n.Disabled), boolInt(n.InTrash), n.CreatedAt, n.ModifiedAt, n.InTrashAt,
	)
	if err != nil {
		return fmt.Errorf("inserting node %s: %w", n.NID, err)
	}
	return nil
}

// Update rewrites a node's content fields and bumps modified_at.
func (s *SQLiteStore) Update(ctx context.Context, n *Node) error {
	n.ModifiedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET title = ?, body = ?, type = ?, modified_at = ?
		 WHERE tenant = ? AND nid = ?`,
		n.Title, n.Body, n.Type, n.ModifiedAt, n.UID, n.NID,
	)
	if err != nil {
		return fmt.Errorf("updating node %s: %w", n.NID, err)
	}
	return requireRow(res, n.NID)
}

// SetTrash flips the trash flag and stamps in_trash_at on entry.
func (s *SQLiteStore) SetTrash(ctx context.Context, tenant, nid string, inTrash bool) error {
	var res sql.Result
	var err error
	if inTrash {
		res, err = s.db.ExecContext(ctx,
			`UPDATE nodes SET in_trash = 1, in_trash_at = ? WHERE tenant = ? AND nid = ?`,
			time.Now().UTC(), tenant, nid,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE nodes SET in_trash = 0, in_trash_at = NULL WHERE tenant = ? AND nid = ?`,
			tenant, nid,
		)
	}
	if err != nil {
		return fmt.Errorf("setting trash on node %s: %w", nid, err)
	}
	return requireRow(res, nid)
}

// Delete removes a node record permanently.
func (s *SQLiteStore) Delete(ctx context.Context, tenant, nid string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM nodes WHERE tenant = ? AND nid = ?`, tenant, nid)
	if err != nil {
		return fmt.Errorf("deleting node %s: %w", nid, err)
	}
	return requireRow(res, nid)
}

func requireRow(res sql.Result, nid string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotExist, nid)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
