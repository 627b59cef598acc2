package index

import (
	"context"
	"strings"
	"unicode"
)

// maxRecommendTerms caps how many distinct terms a query-by-example pulls
// from the supplied content.
const maxRecommendTerms = 16

// Search executes one paginated, sorted, tenant-scoped query.
//
// An empty query lists documents by a structural key with no highlighting.
// A non-empty query matches title and body (AND of terms) ranked by BM25,
// with highlighted title and body snippets. Queries that FTS cannot match
// (CJK text the tokenizer does not segment) fall back to substring search.
func (e *SQLiteEngine) Search(ctx context.Context, req SearchRequest) ([]Hit, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = DefaultPageSize
	}
	if req.PageSize > e.opts.MaxPageSize {
		req.PageSize = e.opts.MaxPageSize
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Sort == "" {
		if req.Query == "" {
			req.Sort = SortCreated
		} else {
			req.Sort = SortRelevance
		}
	}

	if req.Query == "" {
		return e.searchStructural(ctx, req)
	}

	hits, total, err := e.searchFTS(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		// Substring fallback for queries the FTS tokenizer cannot segment.
		return e.searchLike(ctx, req)
	}
	return hits, total, nil
}

// filterClause builds the tenant/lifecycle/exclusion predicate shared by all
// search variants. The tenant predicate is applied here, before pagination,
// so totals stay correct.
func filterClause(req SearchRequest) (string, []interface{}) {
	inTrash := 0
	if req.InTrash {
		inTrash = 1
	}
	clause := ` AND d.tenant = ? AND d.in_trash = ? AND d.disabled = 0`
	args := []interface{}{req.Tenant, inTrash}
	if len(req.Exclude) > 0 {
		clause += ` AND d.nid NOT IN (` + placeholders(len(req.Exclude)) + `)`
		for _, nid := range req.Exclude {
			args = append(args, nid)
		}
	}
	return clause, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// orderClause maps a sort key onto SQL. Reverse means descending and applies
// to structural keys; relevance is always best-first.
func orderClause(req SearchRequest, ranked bool) string {
	dir := " ASC"
	if req.Reverse {
		dir = " DESC"
	}
	switch req.Sort {
	case SortCreated:
		return "d.created_at" + dir + ", d.id" + dir
	case SortModified:
		return "d.modified_at" + dir + ", d.id" + dir
	case SortTitle:
		return "d.title COLLATE NOCASE" + dir + ", d.id" + dir
	default:
		if ranked {
			// FTS5 rank: smaller is better.
			return "rank ASC, d.id ASC"
		}
		return "d.created_at DESC, d.id DESC"
	}
}

func (e *SQLiteEngine) searchStructural(ctx context.Context, req SearchRequest) ([]Hit, int, error) {
	filter, args := filterClause(req)

	var total int
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM docs d WHERE 1=1`+filter, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, e.classify("counting documents", err)
	}

	query := `SELECT d.nid FROM docs d WHERE 1=1` + filter +
		` ORDER BY ` + orderClause(req, false) + ` LIMIT ? OFFSET ?`
	rows, err := e.db.QueryContext(ctx, query,
		append(args, req.PageSize, (req.Page-1)*req.PageSize)...)
	if err != nil {
		return nil, 0, e.classify("listing documents", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.NID); err != nil {
			return nil, 0, e.classify("scanning document row", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, e.classify("listing documents", err)
	}
	return hits, total, nil
}

func (e *SQLiteEngine) searchFTS(ctx context.Context, req SearchRequest) ([]Hit, int, error) {
	match := e.matchExpr(terms(req.Query, e.stopwords), " AND ", req.Query)
	filter, filterArgs := filterClause(req)

	countArgs := append([]interface{}{match}, filterArgs...)
	var total int
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM docs_fts
		 JOIN docs d ON docs_fts.rowid = d.id
		 WHERE docs_fts MATCH ?`+filter,
		countArgs...,
	).Scan(&total)
	if err != nil {
		return nil, 0, e.classify("counting matches", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := `SELECT d.nid, rank,
			highlight(docs_fts, 0, ?, ?),
			snippet(docs_fts, 1, ?, ?, ?, ?)
		 FROM docs_fts
		 JOIN docs d ON docs_fts.rowid = d.id
		 WHERE docs_fts MATCH ?` + filter +
		` ORDER BY ` + orderClause(req, true) + ` LIMIT ? OFFSET ?`

	args := []interface{}{
		e.opts.HighlightPre, e.opts.HighlightPost,
		e.opts.HighlightPre, e.opts.HighlightPost, e.opts.Ellipsis, e.opts.SnippetTokens,
		match,
	}
	args = append(args, filterArgs...)
	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, e.classify("searching documents", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var rank float64
		var titleHL, bodySnippet string
		if err := rows.Scan(&h.NID, &rank, &titleHL, &bodySnippet); err != nil {
			return nil, 0, e.classify("scanning search row", err)
		}
		h.Score = -rank
		h.TitleHighlight = titleHL
		if strings.Contains(bodySnippet, e.opts.HighlightPre) {
			h.BodyHighlights = []string{bodySnippet}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, e.classify("searching documents", err)
	}
	return hits, total, nil
}

// searchLike is the substring fallback for queries FTS5 returns nothing for,
// typically CJK text that unicode61 keeps as a single token. Matches get a
// neutral score and a hand-built snippet around the first occurrence.
func (e *SQLiteEngine) searchLike(ctx context.Context, req SearchRequest) ([]Hit, int, error) {
	pattern := "%" + req.Query + "%"
	filter, filterArgs := filterClause(req)

	countArgs := append([]interface{}{pattern, pattern}, filterArgs...)
	var total int
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM docs d
		 WHERE (d.title LIKE ? OR d.body LIKE ?)`+filter,
		countArgs...,
	).Scan(&total)
	if err != nil {
		return nil, 0, e.classify("counting matches", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := `SELECT d.nid, d.title, d.body FROM docs d
		 WHERE (d.title LIKE ? OR d.body LIKE ?)` + filter +
		` ORDER BY d.modified_at DESC, d.id DESC LIMIT ? OFFSET ?`
	rows, err := e.db.QueryContext(ctx, query,
		append(countArgs, req.PageSize, (req.Page-1)*req.PageSize)...)
	if err != nil {
		return nil, 0, e.classify("searching documents", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var title, body string
		if err := rows.Scan(&h.NID, &title, &body); err != nil {
			return nil, 0, e.classify("scanning search row", err)
		}
		h.TitleHighlight = e.wrapMatch(title, req.Query, false)
		if snip := e.wrapMatch(body, req.Query, true); strings.Contains(snip, e.opts.HighlightPre) {
			h.BodyHighlights = []string{snip}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, e.classify("searching documents", err)
	}
	return hits, total, nil
}

// Recommend runs the supplied content as a query-by-example: its terms,
// minus stopwords, matched OR-wise against the tenant's live documents and
// ranked by BM25. Empty content short-circuits without touching the index.
func (e *SQLiteEngine) Recommend(ctx context.Context, tenant, content string, maxReturn int, exclude []string) ([]Hit, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	if maxReturn <= 0 {
		maxReturn = DefaultMaxRecommend
	}

	ts := terms(content, e.stopwords)
	if len(ts) > maxRecommendTerms {
		ts = ts[:maxRecommendTerms]
	}
	match := e.matchExpr(ts, " OR ", content)

	filter, filterArgs := filterClause(SearchRequest{Tenant: tenant, Exclude: exclude})
	args := append([]interface{}{match}, filterArgs...)
	args = append(args, maxReturn)

	rows, err := e.db.QueryContext(ctx,
		`SELECT d.nid, rank
		 FROM docs_fts
		 JOIN docs d ON docs_fts.rowid = d.id
		 WHERE docs_fts MATCH ?`+filter+
			` ORDER BY rank ASC, d.id ASC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, e.classify("recommending documents", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var rank float64
		if err := rows.Scan(&h.NID, &rank); err != nil {
			return nil, e.classify("scanning recommendation row", err)
		}
		h.Score = -rank
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, e.classify("recommending documents", err)
	}
	return hits, nil
}

// matchExpr joins quoted terms into an FTS5 MATCH expression. Quoting each
// term degrades operator-looking input ("AND", "*", unbalanced quotes) to
// literal matching instead of a syntax error. If the stopword filter ate
// every term, the whole query is quoted as one phrase.
func (e *SQLiteEngine) matchExpr(ts []string, op, whole string) string {
	if len(ts) == 0 {
		return quoteTerm(whole)
	}
	quoted := make([]string, len(ts))
	for i, t := range ts {
		quoted[i] = quoteTerm(t)
	}
	return strings.Join(quoted, op)
}

func quoteTerm(t string) string {
	return `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
}

// terms splits free text into match terms: letter/digit runs, lowercased,
// stopwords and duplicates dropped, original order kept.
func terms(s string, stopwords map[string]struct{}) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		w := strings.ToLower(f)
		if _, dup := seen[w]; dup {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, f)
	}
	return out
}

// wrapMatch builds a highlight for a substring match the way FTS5's
// highlight()/snippet() would: matched text wrapped in the configured tags,
// snippets trimmed to a window around the first occurrence.
func (e *SQLiteEngine) wrapMatch(text, query string, snip bool) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(query))
	if idx < 0 {
		if !snip {
			return text
		}
		return ""
	}
	matched := text[idx : idx+len(query)]
	wrapped := text[:idx] + e.opts.HighlightPre + matched + e.opts.HighlightPost + text[idx+len(query):]
	if !snip {
		return wrapped
	}

	// Trim to a rune window around the match, cortex-style.
	const window = 60
	runes := []rune(wrapped)
	matchStart := len([]rune(wrapped[:idx]))
	start := matchStart - window
	if start < 0 {
		start = 0
	}
	end := matchStart + len([]rune(e.opts.HighlightPre+matched+e.opts.HighlightPost)) + window
	if end > len(runes) {
		end = len(runes)
	}
	out := string(runes[start:end])
	if start > 0 {
		out = e.opts.Ellipsis + out
	}
	if end < len(runes) {
		out = out + e.opts.Ellipsis
	}
	return out
}
