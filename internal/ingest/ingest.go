// Package ingest parses note files for import into the search engine.
//
// Each supported format (Markdown, plain text, JSON dumps, YAML, CSV) has
// its own importer implementing the Importer interface; files are dispatched
// by extension. One file yields one or more notes, never fragments of one:
// the unit of search is the note.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Note is a parsed note ready for indexing. NID is set only by importers
// that carry identity in the data (dumps); otherwise the caller assigns one.
type Note struct {
	NID        string
	Title      string
	Body       string
	SourceFile string
	Metadata   map[string]string

	// Dump-only fields; zero for fresh imports.
	CreatedAt  time.Time
	ModifiedAt time.Time
	Disabled   bool
	InTrash    bool
}

// Importer handles one file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool

	// Import parses the file into notes.
	Import(ctx context.Context, path string) ([]Note, error)
}

// Result summarizes an import run.
type Result struct {
	FilesScanned  int
	FilesImported int
	FilesSkipped  int
	Notes         []Note
	Errors        []FileError
}

// FileError records a non-fatal per-file failure.
type FileError struct {
	File    string
	Message string
}

// Options configures an import run.
type Options struct {
	Recursive   bool
	MaxFileSize int64 // bytes, default 10MB
}

// DefaultMaxFileSize is 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Importers returns the format importers in dispatch order. PlainText goes
// last: it also catches extensionless files.
func Importers() []Importer {
	return []Importer{
		&MarkdownImporter{},
		&JSONImporter{},
		&YAMLImporter{},
		&CSVImporter{},
		&PlainTextImporter{},
	}
}

func importerFor(path string) Importer {
	for _, imp := range Importers() {
		if imp.CanHandle(path) {
			return imp
		}
	}
	return nil
}

// ImportPath parses a file or directory tree into notes. Per-file failures
// are collected in the result, never fatal; only a broken walk aborts.
func ImportPath(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	res := &Result{}
	if !info.IsDir() {
		importFile(ctx, path, info.Size(), opts, res)
		return res, nil
	}

	root := path
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && !opts.Recursive {
				return fs.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			res.Errors = append(res.Errors, FileError{File: p, Message: err.Error()})
			return nil
		}
		importFile(ctx, p, fi.Size(), opts, res)
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return res, nil
}

func importFile(ctx context.Context, path string, size int64, opts Options, res *Result) {
	res.FilesScanned++
	if size > opts.MaxFileSize {
		res.FilesSkipped++
		return
	}
	imp := importerFor(path)
	if imp == nil {
		res.FilesSkipped++
		return
	}
	notes, err := imp.Import(ctx, path)
	if err != nil {
		res.Errors = append(res.Errors, FileError{File: path, Message: err.Error()})
		return
	}
	if len(notes) == 0 {
		res.FilesSkipped++
		return
	}
	res.FilesImported++
	res.Notes = append(res.Notes, notes...)
}

// titleFromPath is the fallback title: the file name without its extension.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
