package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestMarkdownImportTitleFromHeading(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "trip.md", "# Trip plan\n\nVisit Kyoto in spring.\n")

	notes, err := (&MarkdownImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
	if notes[0].Title != "Trip plan" {
		t.Errorf("title = %q", notes[0].Title)
	}
	if notes[0].NID != "" {
		t.Errorf("markdown import assigned an nid: %q", notes[0].NID)
	}
}

func TestMarkdownImportFrontMatter(t *testing.T) {
	dir := t.TempDir()
	content := "---\ntitle: Kyoto itinerary\ntopic: travel\n---\n\nDay one: temples.\n"
	path := writeFile(t, dir, "2024-03-01-kyoto.md", content)

	notes, err := (&MarkdownImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	n := notes[0]
	if n.Title != "Kyoto itinerary" {
		t.Errorf("front matter title lost: %q", n.Title)
	}
	if n.Metadata["topic"] != "travel" {
		t.Errorf("metadata lost: %v", n.Metadata)
	}
	if got := n.Body; got != "Day one: temples." {
		t.Errorf("front matter left in body: %q", got)
	}
}

func TestMarkdownImportFilenameFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "loose-thoughts.md", "no heading here, just text\n")

	notes, err := (&MarkdownImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if notes[0].Title != "loose-thoughts" {
		t.Errorf("title = %q", notes[0].Title)
	}
}

func TestTextImport(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scratch.txt", "line one\r\nline two\n")

	notes, err := (&PlainTextImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if notes[0].Title != "scratch" || notes[0].Body != "line one\nline two" {
		t.Errorf("unexpected note: %+v", notes[0])
	}
}

func TestJSONDumpImport(t *testing.T) {
	dir := t.TempDir()
	content := `[
		{"nid": "n1", "title": "Dumped", "body": "restored body", "in_trash": true,
		 "created_at": "2024-11-05T12:00:00Z", "modified_at": "2024-11-05T12:00:00Z"},
		{"title": "", "body": ""}
	]`
	path := writeFile(t, dir, "dump.json", content)

	notes, err := (&JSONImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("empty entry not skipped: %d notes", len(notes))
	}
	n := notes[0]
	if n.NID != "n1" || !n.InTrash {
		t.Errorf("dump identity/flags lost: %+v", n)
	}
	if n.CreatedAt.IsZero() {
		t.Errorf("dump timestamp lost")
	}
}

func TestJSONDumpImportRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.json", `{"not": "an array"}`)
	if _, err := (&JSONImporter{}).Import(context.Background(), path); err == nil {
		t.Fatal("non-array dump accepted")
	}
}

func TestYAMLMultiDocImport(t *testing.T) {
	dir := t.TempDir()
	content := "title: First\nbody: alpha\n---\ntitle: Second\nbody: beta\ntags:\n  topic: test\n"
	path := writeFile(t, dir, "notes.yaml", content)

	notes, err := (&YAMLImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	if notes[0].Title != "First" || notes[1].Title != "Second" {
		t.Errorf("titles: %q, %q", notes[0].Title, notes[1].Title)
	}
	if notes[1].Metadata["topic"] != "test" {
		t.Errorf("tags lost: %v", notes[1].Metadata)
	}
}

func TestCSVImport(t *testing.T) {
	dir := t.TempDir()
	content := "title,body\nFirst,alpha content\nSecond,beta content\n,\n"
	path := writeFile(t, dir, "notes.csv", content)

	notes, err := (&CSVImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2 (blank row skipped)", len(notes))
	}
	if notes[0].Title != "First" || notes[0].Body != "alpha content" {
		t.Errorf("unexpected note: %+v", notes[0])
	}
}

func TestCSVImportRequiresKnownColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.csv", "a,b\n1,2\n")
	if _, err := (&CSVImporter{}).Import(context.Background(), path); err == nil {
		t.Fatal("headerless csv accepted")
	}
}

func TestImportPathWalks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# A\nbody a\n")
	writeFile(t, dir, "b.txt", "body b\n")
	writeFile(t, dir, "skip.png", "binary-ish\n")
	writeFile(t, dir, ".hidden.md", "# Hidden\nnope\n")
	writeFile(t, dir, "sub/c.md", "# C\nbody c\n")

	// Non-recursive: the subdirectory is skipped.
	res, err := ImportPath(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("importPath: %v", err)
	}
	if len(res.Notes) != 2 {
		t.Errorf("non-recursive notes = %d, want 2: %+v", len(res.Notes), res.Notes)
	}

	res, err = ImportPath(context.Background(), dir, Options{Recursive: true})
	if err != nil {
		t.Fatalf("importPath recursive: %v", err)
	}
	if len(res.Notes) != 3 {
		t.Errorf("recursive notes = %d, want 3", len(res.Notes))
	}
	if res.FilesSkipped == 0 {
		t.Errorf("unsupported file not counted as skipped")
	}
}

func TestImportPathSizeCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.md", "# Big\n"+string(make([]byte, 128)))

	res, err := ImportPath(context.Background(), dir, Options{MaxFileSize: 16})
	if err != nil {
		t.Fatalf("importPath: %v", err)
	}
	if len(res.Notes) != 0 || res.FilesSkipped != 1 {
		t.Errorf("oversized file imported: %+v", res)
	}
}

func TestImportPathCollectsPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.md", "# Good\nfine\n")
	writeFile(t, dir, "bad.json", "not json at all")

	res, err := ImportPath(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("importPath: %v", err)
	}
	if len(res.Notes) != 1 {
		t.Errorf("good file lost alongside bad one: %d notes", len(res.Notes))
	}
	if len(res.Errors) != 1 {
		t.Errorf("bad file not reported: %+v", res.Errors)
	}
}
